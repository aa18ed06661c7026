// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"
	"unicode"

	"github.com/taibuivan/midora/internal/platform/apperr"
)

// # Password Policy

// PasswordPolicy defines the configurable rules a plain-text password must
// satisfy before it is accepted for hashing.
//
// The default posture is relaxed: length >= 6 with every character-class
// flag disabled. Stricter deployments enable flags via configuration.
type PasswordPolicy struct {
	MinLength        int
	RequireDigit     bool
	RequireUppercase bool
	RequireSymbol    bool
}

// DefaultPasswordPolicy returns the relaxed default: minimum six characters.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 6}
}

/*
Validate checks a plain-text password against the policy.

Parameters:
  - password: string

Returns:
  - error: apperr.ValidationError describing the first violated rule, nil otherwise
*/
func (policy PasswordPolicy) Validate(password string) error {
	if len(password) < policy.MinLength {
		return apperr.ValidationError(
			fmt.Sprintf("Password must be at least %d characters long", policy.MinLength),
		)
	}

	var hasDigit, hasUpper, hasSymbol bool
	for _, char := range password {
		switch {
		case unicode.IsDigit(char):
			hasDigit = true
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSymbol = true
		}
	}

	if policy.RequireDigit && !hasDigit {
		return apperr.ValidationError("Password must contain at least one digit")
	}
	if policy.RequireUppercase && !hasUpper {
		return apperr.ValidationError("Password must contain at least one uppercase letter")
	}
	if policy.RequireSymbol && !hasSymbol {
		return apperr.ValidationError("Password must contain at least one symbol")
	}

	return nil
}
