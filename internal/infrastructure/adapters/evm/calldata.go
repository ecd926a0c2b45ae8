package evm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const evmWordLength = 32

// Function selectors
var (
	// allowance(address owner, address spender) => 0xdd62ed3e
	erc20AllowanceSelector = []byte("\xdd\x62\xed\x3e")
	// approve(address spender, uint256 amount) => 0x095ea7b3
	erc20ApproveSelector = []byte("\x09\x5e\xa7\xb3")
	// depositForBurn(uint256 amount, uint32 destinationDomain, bytes32 mintRecipient, address burnToken) => 0x6fd3504e
	depositForBurnSelector = []byte("\x6f\xd3\x50\x4e")
)

func word(b []byte) []byte {
	return common.LeftPadBytes(b, evmWordLength)
}

// allowanceCalldata packs the allowance(owner, spender) call.
func allowanceCalldata(owner, spender common.Address) []byte {
	data := make([]byte, 0, 4+2*evmWordLength)
	data = append(data, erc20AllowanceSelector...)
	data = append(data, word(owner.Bytes())...)
	data = append(data, word(spender.Bytes())...)
	return data
}

// approveCalldata packs the approve(spender, amount) call.
func approveCalldata(spender common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+2*evmWordLength)
	data = append(data, erc20ApproveSelector...)
	data = append(data, word(spender.Bytes())...)
	data = append(data, word(amount.Bytes())...)
	return data
}

// depositForBurnCalldata packs the TokenMessenger depositForBurn call.
func depositForBurnCalldata(amount *big.Int, destinationDomain uint32, mintRecipient [32]byte, burnToken common.Address) []byte {
	data := make([]byte, 0, 4+4*evmWordLength)
	data = append(data, depositForBurnSelector...)
	data = append(data, word(amount.Bytes())...)
	data = append(data, word(new(big.Int).SetUint64(uint64(destinationDomain)).Bytes())...)
	data = append(data, mintRecipient[:]...)
	data = append(data, word(burnToken.Bytes())...)
	return data
}
