package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

func sel(b byte) domain.Selector   { return domain.Selector{b, b, b, b} }
func topic(b byte) domain.TopicHash {
	var t domain.TopicHash
	for i := range t {
		t[i] = b
	}
	return t
}

func fn(selector byte, name string, inputs, outputs []string) domain.FunctionSig {
	return domain.FunctionSig{Selector: sel(selector), Name: name, Inputs: inputs, Outputs: outputs, Mutability: domain.MutabilityNonpayable}
}

func evt(topicByte byte, name string, types ...string) domain.EventSig {
	inputs := make([]domain.EventInput, len(types))
	for i, ty := range types {
		inputs[i] = domain.EventInput{Type: ty}
	}
	return domain.EventSig{Topic0: topic(topicByte), Name: name, Inputs: inputs}
}

func TestABIDiff_Unchanged(t *testing.T) {
	abi := domain.Abi{Functions: []domain.FunctionSig{fn(1, "transfer", []string{"address", "uint256"}, []string{"bool"})}}

	outcome := ABIDiff(abi, abi)

	require.Equal(t, domain.OutcomeCompleted, outcome.Status)
	assert.Empty(t, outcome.Findings)
}

func TestABIDiff_SelectorRemoved(t *testing.T) {
	old := domain.Abi{Functions: []domain.FunctionSig{fn(1, "transfer", []string{"address", "uint256"}, []string{"bool"})}}
	next := domain.Abi{}

	outcome := ABIDiff(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "ABI-001", outcome.Findings[0].Code)
}

func TestABIDiff_SignatureChanged(t *testing.T) {
	old := domain.Abi{Functions: []domain.FunctionSig{fn(1, "withdraw", []string{"uint256"}, nil)}}
	next := domain.Abi{Functions: []domain.FunctionSig{fn(2, "withdraw", []string{"uint256", "address"}, nil)}}

	outcome := ABIDiff(old, next)

	var codes []string
	for _, f := range outcome.Findings {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, "ABI-003")
}

func TestABIDiff_ReturnTypeChanged(t *testing.T) {
	old := domain.Abi{Functions: []domain.FunctionSig{fn(1, "balanceOf", []string{"address"}, []string{"uint256"})}}
	next := domain.Abi{Functions: []domain.FunctionSig{fn(1, "balanceOf", []string{"address"}, []string{"int256"})}}

	outcome := ABIDiff(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "ABI-004", outcome.Findings[0].Code)
}

func TestABIDiff_SelectorCollision(t *testing.T) {
	old := domain.Abi{}
	next := domain.Abi{Functions: []domain.FunctionSig{
		fn(1, "foo", nil, nil),
		fn(1, "bar", nil, nil),
	}}

	outcome := ABIDiff(old, next)

	var codes []string
	for _, f := range outcome.Findings {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, "ABI-002")
}

func TestABIDiff_NewFunction(t *testing.T) {
	old := domain.Abi{}
	next := domain.Abi{Functions: []domain.FunctionSig{fn(1, "newFeature", nil, nil)}}

	outcome := ABIDiff(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "ABI-005", outcome.Findings[0].Code)
	assert.Equal(t, domain.SeverityLow, outcome.Findings[0].Severity)
}

func TestABIDiff_EventSignatureChanged(t *testing.T) {
	old := domain.Abi{Events: []domain.EventSig{evt(1, "Transfer", "address", "address", "uint256")}}
	next := domain.Abi{Events: []domain.EventSig{evt(2, "Transfer", "address", "address", "uint256", "bytes")}}

	outcome := ABIDiff(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "ABI-006", outcome.Findings[0].Code)
}

func TestABIDiff_EventRemoved(t *testing.T) {
	old := domain.Abi{Events: []domain.EventSig{evt(1, "Paused")}}
	next := domain.Abi{}

	outcome := ABIDiff(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "ABI-007", outcome.Findings[0].Code)
}
