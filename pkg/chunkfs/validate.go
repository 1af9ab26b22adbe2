package chunkfs

import (
	"fmt"
	"strings"

	"github.com/iamBelugaa/chunkfs/pkg/errors"
	"github.com/iamBelugaa/chunkfs/pkg/options"
)

func isValidFileName(name string) error {
	if len(name) == 0 {
		return errors.NewRequiredFieldError("fileName").WithExpected(1).WithProvided(0)
	}

	if len(name) > options.MaxFileNameSize {
		return errors.NewFieldRangeError("fileName", len(name), 1, options.MaxFileNameSize).
			WithMessage(
				fmt.Sprintf("File name length %d exceeds maximum of %d bytes", len(name), options.MaxFileNameSize),
			)
	}

	if name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return errors.NewValidationError(
			nil, errors.ErrValidationInvalidValue, fmt.Sprintf("invalid file name %q", name),
		).
			WithField("fileName").
			WithProvided(name).
			WithExpected("a single path element without '/'")
	}

	return nil
}

func isValidContent(data []byte) error {
	if uint64(len(data)) > options.MaxFileSize {
		return errors.NewFieldRangeError("content", len(data), 0, options.MaxFileSize).
			WithMessage(
				fmt.Sprintf(
					"File size %s exceeds maximum allowed size of %s",
					options.FormatBytes(uint64(len(data))), options.FormatBytes(options.MaxFileSize),
				),
			)
	}

	return nil
}
