package manifest

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// ParseError reports a manifest problem with its CUE source position.
type ParseError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ParseError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads the CUE package in a directory and compiles its boot
// manifest. Uses the CUE SDK's Go API directly (not a CLI subprocess).
func Load(dir string) (BootSpec, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return BootSpec{}, fmt.Errorf("manifest directory: %w", err)
	}
	if !info.IsDir() {
		return BootSpec{}, fmt.Errorf("manifest path %s is not a directory", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return BootSpec{}, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return BootSpec{}, formatCUEError(inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return BootSpec{}, formatCUEError(err)
	}
	return Compile(value)
}

// CompileString compiles a boot manifest from CUE source held in
// memory. Tests and embedded defaults use this.
func CompileString(src string) (BootSpec, error) {
	value := cuecontext.New().CompileString(src)
	if err := value.Err(); err != nil {
		return BootSpec{}, formatCUEError(err)
	}
	return Compile(value)
}

// Compile parses a CUE value into a validated, normalized BootSpec.
// The value must contain a top-level `boot` struct:
//
//	boot: {
//		name: "workstation"
//		processes: [
//			{name: "init", grants: [{object: "process", rights: "w"}]},
//			{name: "shell", program: "shell-v2"},
//		]
//	}
func Compile(v cue.Value) (BootSpec, error) {
	if err := v.Err(); err != nil {
		return BootSpec{}, formatCUEError(err)
	}

	bootVal := v.LookupPath(cue.ParsePath("boot"))
	if !bootVal.Exists() {
		return BootSpec{}, &ParseError{Field: "boot", Message: "boot manifest is required", Pos: v.Pos()}
	}

	var spec BootSpec
	nameVal := bootVal.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return BootSpec{}, &ParseError{Field: "boot.name", Message: "name is required", Pos: bootVal.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return BootSpec{}, formatCUEError(err)
	}
	spec.Name = name

	procsVal := bootVal.LookupPath(cue.ParsePath("processes"))
	if procsVal.Exists() {
		iter, err := procsVal.List()
		if err != nil {
			return BootSpec{}, formatCUEError(err)
		}
		for iter.Next() {
			ps, err := compileProcess(iter.Value())
			if err != nil {
				return BootSpec{}, err
			}
			spec.Processes = append(spec.Processes, ps)
		}
	}

	spec = spec.Normalize()
	if err := spec.Validate(); err != nil {
		return BootSpec{}, &ParseError{Field: "boot", Message: err.Error(), Pos: bootVal.Pos()}
	}
	return spec, nil
}

func compileProcess(v cue.Value) (ProcessSpec, error) {
	var ps ProcessSpec

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return ProcessSpec{}, &ParseError{Field: "process.name", Message: "name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return ProcessSpec{}, formatCUEError(err)
	}
	ps.Name = name

	progVal := v.LookupPath(cue.ParsePath("program"))
	if progVal.Exists() {
		prog, err := progVal.String()
		if err != nil {
			return ProcessSpec{}, formatCUEError(err)
		}
		ps.Program = prog
	}

	grantsVal := v.LookupPath(cue.ParsePath("grants"))
	if grantsVal.Exists() {
		iter, err := grantsVal.List()
		if err != nil {
			return ProcessSpec{}, formatCUEError(err)
		}
		for iter.Next() {
			g, err := compileGrant(iter.Value())
			if err != nil {
				return ProcessSpec{}, err
			}
			ps.Grants = append(ps.Grants, g)
		}
	}
	return ps, nil
}

func compileGrant(v cue.Value) (Grant, error) {
	var g Grant

	objVal := v.LookupPath(cue.ParsePath("object"))
	if !objVal.Exists() {
		return Grant{}, &ParseError{Field: "grant.object", Message: "object is required", Pos: v.Pos()}
	}
	objName, err := objVal.String()
	if err != nil {
		return Grant{}, formatCUEError(err)
	}
	t, ok := abi.ParseObjectType(objName)
	if !ok {
		return Grant{}, &ParseError{
			Field:   "grant.object",
			Message: fmt.Sprintf("unknown object type %q", objName),
			Pos:     objVal.Pos(),
		}
	}
	g.Type = t

	idVal := v.LookupPath(cue.ParsePath("id"))
	if idVal.Exists() {
		id, err := idVal.Uint64()
		if err != nil {
			return Grant{}, formatCUEError(err)
		}
		g.Object = id
	}

	rightsVal := v.LookupPath(cue.ParsePath("rights"))
	if !rightsVal.Exists() {
		return Grant{}, &ParseError{Field: "grant.rights", Message: "rights are required", Pos: v.Pos()}
	}
	rightsStr, err := rightsVal.String()
	if err != nil {
		return Grant{}, formatCUEError(err)
	}
	rights, err := abi.ParseRights(rightsStr)
	if err != nil {
		return Grant{}, &ParseError{Field: "grant.rights", Message: err.Error(), Pos: rightsVal.Pos()}
	}
	g.Rights = rights
	return g, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &ParseError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
