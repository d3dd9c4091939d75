package schema

import (
	"errors"
	"fmt"
)

var (
	ErrTypeNotFound  = errors.New("type not found")
	ErrNotComposite  = errors.New("type is not composite")
	ErrFieldNotFound = errors.New("field not found")
)

// CompositeType is a type position: an object, interface or union type that
// selections are made against.
type CompositeType struct {
	Kind TypeKind
	Name string
}

func (c CompositeType) String() string { return c.Name }

// IsZero reports whether c is the zero position.
func (c CompositeType) IsZero() bool { return c.Name == "" }

// FieldPosition names a field by its declaring composite type.
type FieldPosition struct {
	Parent CompositeType
	Field  string
}

func (p FieldPosition) String() string { return p.Parent.Name + "." + p.Field }

// CompositeType resolves name to a type position in s.
func (s *Schema) CompositeType(name string) (CompositeType, error) {
	t := s.Types[name]
	if t == nil {
		return CompositeType{}, fmt.Errorf("%w: %s", ErrTypeNotFound, name)
	}
	if !t.IsComposite() {
		return CompositeType{}, fmt.Errorf("%w: %s is %s", ErrNotComposite, name, t.Kind)
	}
	return CompositeType{Kind: t.Kind, Name: name}, nil
}

// MustCompositeType is like CompositeType but panics when name does not
// resolve. It is meant for fixtures and for positions already validated.
func (s *Schema) MustCompositeType(name string) CompositeType {
	c, err := s.CompositeType(name)
	if err != nil {
		panic(err)
	}
	return c
}

var typenameField = &Field{
	Name:        "__typename",
	Description: "The name of the current Object type at runtime.",
	Type:        NonNullType(NamedType("String")),
}

var schemaField = &Field{
	Name:        "__schema",
	Description: "Access the current type schema of this server.",
	Type:        NonNullType(NamedType("__Schema")),
}

var typeField = &Field{
	Name:        "__type",
	Description: "Request the type information of a single type.",
	Type:        NamedType("__Type"),
	Arguments:   []*InputValue{{Name: "name", Type: NonNullType(NamedType("String"))}},
}

// FieldDefinition resolves p in s. __typename resolves on every composite
// type, __schema and __type only on the query root.
func (s *Schema) FieldDefinition(p FieldPosition) (*Field, error) {
	t := s.Types[p.Parent.Name]
	if t == nil || t.Kind != p.Parent.Kind {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotFound, p.Parent.Name)
	}
	switch p.Field {
	case "__typename":
		return typenameField, nil
	case "__schema", "__type":
		if p.Parent.Name == s.QueryType {
			if p.Field == "__schema" {
				return schemaField, nil
			}
			return typeField, nil
		}
	default:
		if f := t.Field(p.Field); f != nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, p)
}

// BaseType returns the composite output type of the field at p.
func (s *Schema) BaseType(p FieldPosition) (CompositeType, error) {
	f, err := s.FieldDefinition(p)
	if err != nil {
		return CompositeType{}, err
	}
	return s.CompositeType(f.Type.GetNamedType())
}
