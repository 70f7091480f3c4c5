package strings

import "testing"

func TestToLowerCamel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "Foo", want: "foo"},
		{in: "NativeFoo", want: "nativeFoo"},
		{in: "HTTPClient", want: "httpClient"},
		{in: "ID", want: "id"},
		{in: "foo", want: "foo"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			if got := ToLowerCamel(tt.in); got != tt.want {
				t.Errorf("ToLowerCamel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSafeIdent(t *testing.T) {
	t.Parallel()

	if got := SafeIdent("type"); got != "typeValue" {
		t.Errorf("SafeIdent(type) = %q", got)
	}
	if got := SafeIdent("config"); got != "config" {
		t.Errorf("SafeIdent(config) = %q", got)
	}
}

func TestPrefixed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix string
		name   string
		want   string
	}{
		{prefix: "new", name: "userService", want: "newUserService"},
		{prefix: "new", name: "foo", want: "newFoo"},
		{prefix: "new", name: "httpClient", want: "newHttpClient"},
		{prefix: "new", name: "", want: "new"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Prefixed(tt.prefix, tt.name); got != tt.want {
				t.Errorf("Prefixed(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
			}
		})
	}
}
