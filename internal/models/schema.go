package models

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
)

// SchemaDescriptor is a JSON-Schema document describing AuditReport. Each
// DescribeReport call returns a fresh value the caller may modify.
type SchemaDescriptor map[string]any

// canonicalSchema holds the reflected schema of AuditReport. It is only ever
// decoded, never written to.
var canonicalSchema = mustReflectSchema()

func mustReflectSchema() []byte {
	r := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	data, err := json.Marshal(r.Reflect(&AuditReport{}))
	if err != nil {
		panic(fmt.Sprintf("reflect audit report schema: %v", err))
	}
	return data
}

// CanonicalSchemaJSON returns a copy of the canonical schema bytes.
func CanonicalSchemaJSON() []byte {
	return slices.Clone(canonicalSchema)
}

type schemaOptions struct {
	omitVulnFields []string
}

// SchemaOption customizes a descriptor.
type SchemaOption func(*schemaOptions)

// WithoutPoC drops poc_code from the vulnerability item schema.
func WithoutPoC() SchemaOption {
	return WithoutVulnerabilityFields("poc_code")
}

// WithoutVulnerabilityFields drops the named properties from the vulnerability item schema.
func WithoutVulnerabilityFields(names ...string) SchemaOption {
	return func(o *schemaOptions) {
		o.omitVulnFields = append(o.omitVulnFields, names...)
	}
}

// DescribeReport builds the schema descriptor handed to the backend.
func DescribeReport(opts ...SchemaOption) SchemaDescriptor {
	var o schemaOptions
	for _, opt := range opts {
		opt(&o)
	}

	var d SchemaDescriptor
	if err := json.Unmarshal(canonicalSchema, &d); err != nil {
		panic(fmt.Sprintf("decode canonical schema: %v", err))
	}
	if len(o.omitVulnFields) == 0 {
		return d
	}

	item := d.vulnerabilityItem()
	if item == nil {
		return d
	}
	if props, ok := item["properties"].(map[string]any); ok {
		for _, name := range o.omitVulnFields {
			delete(props, name)
		}
	}
	if required, ok := item["required"].([]any); ok {
		item["required"] = slices.DeleteFunc(required, func(v any) bool {
			s, _ := v.(string)
			return slices.Contains(o.omitVulnFields, s)
		})
	}
	return d
}

func (d SchemaDescriptor) vulnerabilityItem() map[string]any {
	props, _ := d["properties"].(map[string]any)
	vulns, _ := props["vulnerabilities"].(map[string]any)
	item, _ := vulns["items"].(map[string]any)
	return item
}

// VulnerabilityFields lists the property names of the vulnerability item schema.
func (d SchemaDescriptor) VulnerabilityFields() []string {
	item := d.vulnerabilityItem()
	props, _ := item["properties"].(map[string]any)
	fields := make([]string, 0, len(props))
	for name := range props {
		fields = append(fields, name)
	}
	slices.Sort(fields)
	return fields
}

// JSON renders the descriptor for embedding in a prompt.
func (d SchemaDescriptor) JSON() string {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
