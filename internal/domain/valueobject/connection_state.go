package valueobject

// ConnectionState is the lifecycle of the binding to the billing service.
type ConnectionState int

const (
	StateUnbound ConnectionState = iota
	StateBinding
	StateBound
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBinding:
		return "binding"
	case StateBound:
		return "bound"
	case StateDisconnected:
		return "disconnected"
	default:
		return "invalid"
	}
}
