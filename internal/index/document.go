package index

import "fmt"

// SourceKind tells where a Declaration's binding comes from.
type SourceKind uint8

const (
	// DeclaredInFile bindings are defined in the owning document at Range.
	DeclaredInFile SourceKind = iota
	// Loaded bindings were imported by a load statement from Path.
	Loaded
)

func (k SourceKind) String() string {
	switch k {
	case DeclaredInFile:
		return "declared"
	case Loaded:
		return "loaded"
	default:
		return "unknown"
	}
}

func (k SourceKind) MarshalText() ([]byte, error) {
	switch k {
	case DeclaredInFile, Loaded:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("index: invalid source kind %d", k)
}

func (k *SourceKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "declared":
		*k = DeclaredInFile
	case "loaded":
		*k = Loaded
	default:
		return fmt.Errorf("index: invalid source kind %q", b)
	}
	return nil
}

// Declaration is a named binding in a document.
//
// ImportedName is the local name; RealName is the name exported by the file
// the binding originates from. They differ only for renaming loads such as
// load("//:f.bzl", local = "exported"). Range is set for DeclaredInFile,
// Path for Loaded. Path is a non-owning reference resolved lazily through
// the document store.
type Declaration struct {
	ImportedName string     `json:"imported_name"`
	RealName     string     `json:"real_name"`
	Kind         SourceKind `json:"kind"`
	Range        Range      `json:"range"`
	Path         string     `json:"path,omitempty"`
}

// DeclaredAt builds a declaration defined in the current file.
func DeclaredAt(name string, r Range) Declaration {
	return Declaration{
		ImportedName: name,
		RealName:     name,
		Kind:         DeclaredInFile,
		Range:        r,
	}
}

// LoadedFrom builds a declaration imported from path. realName is the name
// exported by path, importedName the local binding.
func LoadedFrom(realName, importedName, path string) Declaration {
	return Declaration{
		ImportedName: importedName,
		RealName:     realName,
		Kind:         Loaded,
		Path:         path,
	}
}

// Call is a reference to an identifier at a source location.
type Call struct {
	FunctionName string `json:"function_name"`
	Range        Range  `json:"range"`
}

// CallAt builds the call for an identifier starting at start.
func CallAt(name string, start Position) Call {
	return Call{FunctionName: name, Range: IdentifierRange(name, start)}
}

// IndexedDocument is the index of one file. Once published by the document
// store it is never mutated; re-indexing replaces it wholesale.
type IndexedDocument struct {
	Declarations map[string]Declaration `json:"declarations"`
	Calls        []Call                 `json:"calls"`
}

// NewIndexedDocument returns an empty document ready for indexing.
func NewIndexedDocument() *IndexedDocument {
	return &IndexedDocument{Declarations: make(map[string]Declaration)}
}

// Declare records decl under its imported name. Later declarations of the
// same name win, as rebinding does at module scope.
func (d *IndexedDocument) Declare(decl Declaration) {
	d.Declarations[decl.ImportedName] = decl
}

// AddCall appends a call site in source order.
func (d *IndexedDocument) AddCall(call Call) {
	d.Calls = append(d.Calls, call)
}

// CallAt returns the first call whose range contains pos.
func (d *IndexedDocument) CallAt(pos Position) (Call, bool) {
	for _, c := range d.Calls {
		if c.Range.Contains(pos) {
			return c, true
		}
	}
	return Call{}, false
}

// DeclarationOf looks up a binding by its local name.
func (d *IndexedDocument) DeclarationOf(name string) (Declaration, bool) {
	decl, ok := d.Declarations[name]
	return decl, ok
}

// Equal reports structural equality: same declarations regardless of map
// order, and the same calls in the same order.
func (d *IndexedDocument) Equal(other *IndexedDocument) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.Declarations) != len(other.Declarations) || len(d.Calls) != len(other.Calls) {
		return false
	}
	for name, decl := range d.Declarations {
		if o, ok := other.Declarations[name]; !ok || o != decl {
			return false
		}
	}
	for i := range d.Calls {
		if d.Calls[i] != other.Calls[i] {
			return false
		}
	}
	return true
}
