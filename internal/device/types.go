package device

import "time"

// EntityInfo holds the audit fields and soft-delete flag shared by every
// persisted entity.
type EntityInfo struct {
	CreatedDate time.Time  `json:"createdDate"`
	CreatedBy   string     `json:"createdBy"`
	UpdatedDate *time.Time `json:"updatedDate,omitempty"`
	UpdatedBy   string     `json:"updatedBy,omitempty"`
	Deleted     bool       `json:"deleted"`
}

// Specification describes a device type: the template that concrete
// devices are created from.
type Specification struct {
	Token    string            `json:"token"`
	Name     string            `json:"name"`
	AssetID  string            `json:"assetId"`
	Metadata map[string]string `json:"metadata,omitempty"`

	EntityInfo
}

// DeepCopy creates an independent copy of the Specification.
func (s *Specification) DeepCopy() *Specification {
	if s == nil {
		return nil
	}
	cpy := *s
	cpy.Metadata = copyMetadata(s.Metadata)
	if s.UpdatedDate != nil {
		t := *s.UpdatedDate
		cpy.UpdatedDate = &t
	}
	return &cpy
}

// CreateRequest carries the fields of a specification create or update.
//
// On create, an empty Token asks the store to generate one. On update,
// empty strings and a nil Metadata leave the stored values unchanged.
type CreateRequest struct {
	Token    string            `json:"token,omitempty"`
	Name     string            `json:"name"`
	AssetID  string            `json:"assetId"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ParameterType is the wire type of a command parameter.
type ParameterType string

// Parameter types.
const (
	ParameterString ParameterType = "String"
	ParameterBool   ParameterType = "Bool"
	ParameterInt32  ParameterType = "Int32"
	ParameterInt64  ParameterType = "Int64"
	ParameterFloat  ParameterType = "Float"
	ParameterDouble ParameterType = "Double"
	ParameterBytes  ParameterType = "Bytes"
)

// AllParameterTypes returns every supported parameter type.
func AllParameterTypes() []ParameterType {
	return []ParameterType{
		ParameterString,
		ParameterBool,
		ParameterInt32,
		ParameterInt64,
		ParameterFloat,
		ParameterDouble,
		ParameterBytes,
	}
}

// CommandParameter is one argument of a device command.
type CommandParameter struct {
	Name     string        `json:"name"`
	Type     ParameterType `json:"type"`
	Required bool          `json:"required"`
}

// DeviceCommand is a command that devices of one specification accept.
type DeviceCommand struct {
	Token              string             `json:"token"`
	SpecificationToken string             `json:"specificationToken"`
	Name               string             `json:"name"`
	Namespace          string             `json:"namespace,omitempty"`
	Description        string             `json:"description,omitempty"`
	Parameters         []CommandParameter `json:"parameters,omitempty"`
	Metadata           map[string]string  `json:"metadata,omitempty"`

	EntityInfo
}

// DeepCopy creates an independent copy of the DeviceCommand.
func (c *DeviceCommand) DeepCopy() *DeviceCommand {
	if c == nil {
		return nil
	}
	cpy := *c
	cpy.Metadata = copyMetadata(c.Metadata)
	if c.Parameters != nil {
		cpy.Parameters = make([]CommandParameter, len(c.Parameters))
		copy(cpy.Parameters, c.Parameters)
	}
	if c.UpdatedDate != nil {
		t := *c.UpdatedDate
		cpy.UpdatedDate = &t
	}
	return &cpy
}

// CommandCreateRequest carries the fields of a new device command.
type CommandCreateRequest struct {
	Token       string             `json:"token,omitempty"`
	Name        string             `json:"name"`
	Namespace   string             `json:"namespace,omitempty"`
	Description string             `json:"description,omitempty"`
	Parameters  []CommandParameter `json:"parameters,omitempty"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cpy := make(map[string]string, len(m))
	for k, v := range m {
		cpy[k] = v
	}
	return cpy
}
