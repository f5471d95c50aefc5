package middleware

// Chain composes wrappers so that the first one is the outermost:
// Chain(a, b)(h) == a(b(h)).
func Chain[H any](wrappers ...func(H) H) func(H) H {
	return func(handler H) H {
		for i := len(wrappers) - 1; i >= 0; i-- {
			handler = wrappers[i](handler)
		}
		return handler
	}
}
