package rehearsal

// Temperature controls the randomness of model output. Providers fall back
// to DefaultTemperature when their config leaves it unset.
const (
	// TemperatureUnset indicates that no temperature has been explicitly set.
	// A zero-value float32 (0.0) is also treated as unset for ergonomic struct initialization.
	TemperatureUnset float32 = -1

	// TemperatureZero provides an explicitly near-zero temperature.
	// Use this instead of 0.0 since zero is treated as "unset".
	TemperatureZero float32 = 0.0001

	// DefaultTemperature applies when a provider config leaves Temperature unset.
	DefaultTemperature float32 = 0.7
)

// DefaultSystemInstruction is sent by providers that support a system prompt
// when their config does not override it.
const DefaultSystemInstruction = "You are a highly analytical AI assistant. " +
	"You must always adhere to the requested JSON output format strictly."

// ResolveTemperature maps unset values to DefaultTemperature.
func ResolveTemperature(t float32) float32 {
	if t <= 0 {
		return DefaultTemperature
	}
	return t
}
