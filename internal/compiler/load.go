package compiler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"

	"github.com/roach88/bassline/internal/ir"
)

// NetworkPath is the CUE path holding the network definition.
const NetworkPath = "network"

// CompileString compiles CUE source text holding a top-level network field.
// filename only labels error positions.
func CompileString(src, filename string) (ir.Bassline, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return ir.Bassline{}, formatCUEError(err)
	}
	return compileRoot(v)
}

// LoadFile reads a network from disk. The format follows the extension:
//
//	.cue         CUE network definition (a directory loads as one package)
//	.json        canonical Bassline JSON, as printed by "bassline inspect"
//	.yaml, .yml  Bassline in YAML form
func LoadFile(path string) (ir.Bassline, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ir.Bassline{}, err
	}
	if info.IsDir() {
		return loadCUEDir(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ir.Bassline{}, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return CompileString(string(data), path)
	case ".json":
		var b ir.Bassline
		if err := json.Unmarshal(data, &b); err != nil {
			return ir.Bassline{}, fmt.Errorf("%s: %w", path, err)
		}
		return b, nil
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return ir.Bassline{}, fmt.Errorf("%s: unsupported network format %q", path, filepath.Ext(path))
	}
}

// DecodeYAML decodes a Bassline written in YAML, using the same field names
// as the JSON form.
func DecodeYAML(data []byte) (ir.Bassline, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return ir.Bassline{}, fmt.Errorf("parse yaml: %w", err)
	}
	return FromYAMLValue(raw)
}

// FromYAMLValue converts an already decoded YAML document into a Bassline.
func FromYAMLValue(raw any) (ir.Bassline, error) {
	v, err := ir.FromGo(raw)
	if err != nil {
		return ir.Bassline{}, err
	}
	return ir.BasslineFromIR(v)
}

func loadCUEDir(dir string) (ir.Bassline, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return ir.Bassline{}, fmt.Errorf("%s: no CUE instances loaded", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return ir.Bassline{}, formatCUEError(inst.Err)
	}
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return ir.Bassline{}, formatCUEError(err)
	}
	return compileRoot(v)
}

func compileRoot(v cue.Value) (ir.Bassline, error) {
	nv := v.LookupPath(cue.ParsePath(NetworkPath))
	if !nv.Exists() {
		return ir.Bassline{}, &CompileError{
			Field:   NetworkPath,
			Message: "network is required",
			Pos:     v.Pos(),
		}
	}
	return CompileNetwork(nv)
}
