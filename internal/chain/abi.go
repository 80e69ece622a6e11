package chain

// erc4626ABIJSON covers the subset of the ERC-4626 vault interface the
// chain-access layer reads: share balance, asset conversion, and the
// metadata fields read_pool_metadata assembles. supplyRate is not part of
// the ERC-4626 standard itself but is the common extension Aave/Compound
// style money-market vaults expose for the current supply rate.
const erc4626ABIJSON = `[
  {"name":"balanceOf","type":"function","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"convertToAssets","type":"function","stateMutability":"view",
   "inputs":[{"name":"shares","type":"uint256"}],
   "outputs":[{"name":"assets","type":"uint256"}]},
  {"name":"asset","type":"function","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"address"}]},
  {"name":"totalAssets","type":"function","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"supplyRate","type":"function","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]}
]`

// erc20ABIJSON covers the ERC-20 reads used for underlying-asset symbol
// and decimals resolution.
const erc20ABIJSON = `[
  {"name":"decimals","type":"function","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint8"}]},
  {"name":"symbol","type":"function","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"string"}]},
  {"name":"totalSupply","type":"function","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]}
]`
