package plain

func Hello() string {
	return "hello"
}
