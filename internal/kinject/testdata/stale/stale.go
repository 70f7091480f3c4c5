package stale

// Greeting no longer has a component, so a generated file next to it is stale.
func Greeting() string {
	return "hello"
}
