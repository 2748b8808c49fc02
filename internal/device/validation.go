package device

import (
	"errors"
	"fmt"
	"strings"
)

// Validation limits.
const (
	maxNameLength       = 100
	maxTokenLength      = 128
	maxMetadataKeys     = 50
	maxMetadataValueLen = 1024
	maxParameters       = 32
)

var validParameterTypes map[ParameterType]struct{}

func init() {
	validParameterTypes = make(map[ParameterType]struct{}, len(AllParameterTypes()))
	for _, t := range AllParameterTypes() {
		validParameterTypes[t] = struct{}{}
	}
}

// ValidateCreateRequest checks a specification create request.
func ValidateCreateRequest(req *CreateRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidSpecification)
	}
	if len(req.Token) > maxTokenLength {
		return fmt.Errorf("%w: token exceeds %d characters", ErrInvalidSpecification, maxTokenLength)
	}
	if err := ValidateName(req.Name); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSpecification, err)
	}
	if err := validateMetadata(req.Metadata); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSpecification, err)
	}
	return nil
}

// ValidateUpdateRequest checks a specification update request. Only the
// fields that are present are validated.
func ValidateUpdateRequest(req *CreateRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidSpecification)
	}
	if req.Name != "" {
		if err := ValidateName(req.Name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSpecification, err)
		}
	}
	if err := validateMetadata(req.Metadata); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSpecification, err)
	}
	return nil
}

// ValidateCommandRequest checks a device command create request.
func ValidateCommandRequest(req *CommandCreateRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidCommand)
	}
	if err := ValidateName(req.Name); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if len(req.Parameters) > maxParameters {
		return fmt.Errorf("%w: more than %d parameters", ErrInvalidCommand, maxParameters)
	}
	seen := make(map[string]struct{}, len(req.Parameters))
	for _, p := range req.Parameters {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: parameter name cannot be empty", ErrInvalidCommand)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: duplicate parameter %q", ErrInvalidCommand, p.Name)
		}
		seen[p.Name] = struct{}{}
		if _, ok := validParameterTypes[p.Type]; !ok {
			return fmt.Errorf("%w: parameter %q has unknown type %q", ErrInvalidCommand, p.Name, p.Type)
		}
	}
	if err := validateMetadata(req.Metadata); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return nil
}

// ValidateName checks that a name is non-blank and within length limits.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

func validateMetadata(m map[string]string) error {
	if len(m) > maxMetadataKeys {
		return fmt.Errorf("metadata exceeds %d keys", maxMetadataKeys)
	}
	for k, v := range m {
		if k == "" {
			return errors.New("metadata key cannot be empty")
		}
		if len(v) > maxMetadataValueLen {
			return fmt.Errorf("metadata value for %q exceeds %d characters", k, maxMetadataValueLen)
		}
	}
	return nil
}
