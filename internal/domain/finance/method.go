package finance

// PaymentMethod identifies how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodOther        PaymentMethod = "other"
)

// MethodConfig describes the static configuration of a payment method.
// It is consumed by the validator and is not part of the engine's own state.
type MethodConfig struct {
	Label             string `json:"label"`
	RequiresReference bool   `json:"requires_reference"`
	ReferenceLabel    string `json:"reference_label,omitempty"`
}

var methodConfigs = map[PaymentMethod]MethodConfig{
	PaymentMethodCash:         {Label: "Cash"},
	PaymentMethodBankTransfer: {Label: "Bank Transfer", RequiresReference: true, ReferenceLabel: "Transaction No"},
	PaymentMethodCheque:       {Label: "Cheque", RequiresReference: true, ReferenceLabel: "Cheque No"},
	PaymentMethodCreditCard:   {Label: "Credit Card"},
	PaymentMethodOther:        {Label: "Other"},
}

// methodOrder keeps option listings stable
var methodOrder = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodBankTransfer,
	PaymentMethodCheque,
	PaymentMethodCreditCard,
	PaymentMethodOther,
}

// IsValid checks if the payment method is a known method
func (m PaymentMethod) IsValid() bool {
	_, ok := methodConfigs[m]
	return ok
}

// Config returns the configuration for the payment method.
// Unknown methods fall back to the "other" configuration.
func (m PaymentMethod) Config() MethodConfig {
	if cfg, ok := methodConfigs[m]; ok {
		return cfg
	}
	return methodConfigs[PaymentMethodOther]
}

// Label returns the display label for the payment method
func (m PaymentMethod) Label() string {
	return m.Config().Label
}

// MethodOption pairs a payment method value with its display label
type MethodOption struct {
	Value PaymentMethod `json:"value"`
	Label string        `json:"label"`
}

// MethodOptions returns all payment methods in stable display order
func MethodOptions() []MethodOption {
	options := make([]MethodOption, 0, len(methodOrder))
	for _, m := range methodOrder {
		options = append(options, MethodOption{Value: m, Label: m.Label()})
	}
	return options
}
