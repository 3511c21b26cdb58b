// Package errors provides examples of structured error handling in colreplace.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/colreplace/pkg/errors"
)

// Example demonstrates basic error creation with a field attribution.
func Example() {
	err := errors.New(errors.ErrorTypePattern, "missing closing ): `(`").
		WithField("to_replace")

	fmt.Println(err.Error())
	fmt.Println(err.Field())

	// Output:
	// pattern: missing closing ): `(`
	// to_replace
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeFile, "failed to read parquet input").
		WithDetail("uri", "data.parquet")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	fmt.Println(err)

	// Output:
	// This is a file error
	// file: failed to read parquet input: unexpected EOF
}

// ExampleIsType demonstrates checking error types through wrapping.
func ExampleIsType() {
	tmplErr := errors.New(errors.ErrorTypeTemplate, "invalid backreference").WithField("replace_with")
	wrapped := errors.Wrap(tmplErr, errors.ErrorTypeValidation, "render failed")

	fmt.Printf("Is template error: %v\n", errors.IsType(tmplErr, errors.ErrorTypeTemplate))
	fmt.Printf("Wrapped error is validation type: %v\n", errors.IsType(wrapped, errors.ErrorTypeValidation))
	fmt.Printf("Wrapped error is template type: %v\n", errors.IsType(wrapped, errors.ErrorTypeTemplate))

	// Output:
	// Is template error: true
	// Wrapped error is validation type: true
	// Wrapped error is template type: false
}

// Example_errorChain shows how messages compose along a chain.
func Example_errorChain() {
	err := errors.New(errors.ErrorTypeUnknownColumn, "column \"B\" does not exist")
	err = errors.Wrap(err, errors.ErrorTypeValidation, "render failed")

	var inner *errors.Error
	if errors.As(err.Cause, &inner) {
		fmt.Println(inner.Type)
	}
	fmt.Println(err)

	// Output:
	// unknown_column
	// validation: render failed: unknown_column: column "B" does not exist
}
