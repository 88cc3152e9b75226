package io

import (
	"errors"

	"github.com/ezrec/um/translate"
)

var f = translate.From

var (
	// Console errors
	ErrConsoleShort = errors.New(f("console short write"))
)
