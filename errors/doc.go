/*
Package errors implements custom error interfaces for paystream.

The idea is to reuse as many errors from this package as possible and define
custom package errors when absolutely necessary. Root errors are declared with
Register(code, description) and every runtime error should wrap one of them,
so that the caller can always test the kind of a failure using the Is method:

	if errors.ErrStaleClaim.Is(err) {
		// ask the sender for a fresh claim
	}

There is also support for stacktraces. Please ensure you create the custom
error using ErrXyz.New("...") or errors.Wrap(err, "...") at the point of
creation to ensure we attach a stacktrace. If you wrap multiple times, we only
record the first wrap with the stacktrace.

Once you have an error, you can use fmt.Printf/Sprintf to get more context
	%s is just the error message
	%+v is the full stack trace
*/
package errors
