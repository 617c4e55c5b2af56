package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PLYType is the encoding of a ply file.
type PLYType int

const (
	// PLYAscii is the "format ascii 1.0" encoding.
	PLYAscii PLYType = iota
	// PLYBinaryLittleEndian is the "format binary_little_endian 1.0" encoding.
	PLYBinaryLittleEndian
)

func (t PLYType) String() string {
	if t == PLYBinaryLittleEndian {
		return "binary_little_endian"
	}
	return "ascii"
}

// ToPLY writes the cloud as a vertex-only ply file with double x y z properties.
func ToPLY(cloud PointCloud, out io.Writer, outputType PLYType) error {
	if outputType != PLYAscii && outputType != PLYBinaryLittleEndian {
		return errors.Errorf("unknown ply type %d", outputType)
	}
	if _, err := fmt.Fprintf(out, "ply\n"+
		"format %s 1.0\n"+
		"element vertex %d\n"+
		"property double x\n"+
		"property double y\n"+
		"property double z\n"+
		"end_header\n",
		outputType, cloud.Size()); err != nil {
		return err
	}

	var err error
	buf := make([]byte, 24)
	cloud.Iterate(0, 0, func(p r3.Vector) bool {
		if outputType == PLYBinaryLittleEndian {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(p.X))
			binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(p.Y))
			binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(p.Z))
			_, err = out.Write(buf)
		} else {
			_, err = fmt.Fprintf(out, "%s %s %s\n",
				strconv.FormatFloat(p.X, 'g', -1, 64),
				strconv.FormatFloat(p.Y, 'g', -1, 64),
				strconv.FormatFloat(p.Z, 'g', -1, 64))
		}
		return err == nil
	})
	return err
}

// MaxPLYElementCount bounds the count of any element in a ply header. Larger counts are
// rejected before any data is decoded.
const MaxPLYElementCount = 1 << 27

// plyScalarTypes lists both the classic and the sized ply type names.
var plyScalarTypes = map[string]bool{
	"char": true, "int8": true, "uchar": true, "uint8": true,
	"short": true, "int16": true, "ushort": true, "uint16": true,
	"int": true, "int32": true, "uint": true, "uint32": true,
	"float": true, "float32": true,
	"double": true, "float64": true,
}

type plyElement struct {
	name       string
	count      int
	properties []string
}

func (e plyElement) has(name string) bool {
	for _, p := range e.properties {
		if p == name {
			return true
		}
	}
	return false
}

type plyHeader struct {
	format   PLYType
	elements []plyElement
	// raw is the header text as read, end_header line included.
	raw strings.Builder
}

// readPLYHeader checks the header of a ply stream up front so the decoder only ever sees a
// supported format and bounded element counts.
func readPLYHeader(in *bufio.Reader) (*plyHeader, error) {
	header := &plyHeader{}
	magic, err := in.ReadString('\n')
	if err != nil || strings.TrimSpace(magic) != "ply" {
		return nil, errors.New("not a ply file")
	}
	header.raw.WriteString(magic)
	sawFormat := false
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrap(err, "reading ply header")
		}
		header.raw.WriteString(line)
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		switch tokens[0] {
		case "comment", "obj_info":
		case "format":
			if len(tokens) != 3 {
				return nil, errors.Errorf("bad ply format line %q", strings.TrimSpace(line))
			}
			switch tokens[1] {
			case "ascii":
				header.format = PLYAscii
			case "binary_little_endian":
				header.format = PLYBinaryLittleEndian
			default:
				return nil, errors.Errorf("unsupported ply format %s", tokens[1])
			}
			sawFormat = true
		case "element":
			if len(tokens) != 3 {
				return nil, errors.Errorf("bad ply element line %q", strings.TrimSpace(line))
			}
			count, err := strconv.ParseUint(tokens[2], 10, 64)
			if err != nil {
				return nil, errors.Errorf("bad ply element count %q", tokens[2])
			}
			if count > MaxPLYElementCount {
				return nil, errors.Errorf("ply element %s count %d exceeds limit %d", tokens[1], count, MaxPLYElementCount)
			}
			header.elements = append(header.elements, plyElement{name: tokens[1], count: int(count)})
		case "property":
			if len(header.elements) == 0 {
				return nil, errors.New("ply property before any element")
			}
			elem := &header.elements[len(header.elements)-1]
			if len(tokens) == 5 && tokens[1] == "list" {
				continue
			}
			if len(tokens) != 3 {
				return nil, errors.Errorf("bad ply property line %q", strings.TrimSpace(line))
			}
			if !plyScalarTypes[tokens[1]] {
				return nil, errors.Errorf("unknown ply property type %s", tokens[1])
			}
			elem.properties = append(elem.properties, tokens[2])
		case "end_header":
			if !sawFormat {
				return nil, errors.New("ply header has no format line")
			}
			return header, nil
		default:
			return nil, errors.Errorf("unexpected ply header line %q", strings.TrimSpace(line))
		}
	}
}

func (h *plyHeader) vertexElement() (plyElement, error) {
	for _, elem := range h.elements {
		if elem.name != "vertex" {
			continue
		}
		if !elem.has("x") || !elem.has("y") || !elem.has("z") {
			return elem, errors.New("ply vertex element needs x, y and z properties")
		}
		return elem, nil
	}
	return plyElement{}, errors.New("ply file has no vertex element")
}

// plyFloat converts a decoded ply scalar to float64.
func plyFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int8:
		return float64(n), true
	case uint8:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint16:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// decodePLY runs goply over the checked header and the remaining body. goply reports
// malformed bodies by panicking, which is turned into an error here.
func decodePLY(header *plyHeader, body io.Reader) (vertices []goply.PlyElement, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("malformed ply body: %v", r)
		}
	}()
	ply := goply.New(io.MultiReader(strings.NewReader(header.raw.String()), body))
	return ply.Elements("vertex"), nil
}

// ReadPLY reads the vertex element of an ascii or binary little endian ply stream. Other
// elements, such as faces, are ignored.
func ReadPLY(inRaw io.Reader) (PointCloud, error) {
	in := bufio.NewReader(inRaw)
	header, err := readPLYHeader(in)
	if err != nil {
		return nil, err
	}
	elem, err := header.vertexElement()
	if err != nil {
		return nil, err
	}
	vertices, err := decodePLY(header, in)
	if err != nil {
		return nil, err
	}
	if len(vertices) != elem.count {
		return nil, errors.Errorf("ply declares %d vertices, decoded %d", elem.count, len(vertices))
	}

	pc := NewWithPrealloc(len(vertices))
	for i, vertex := range vertices {
		var v [3]float64
		for j, name := range [...]string{"x", "y", "z"} {
			f, ok := plyFloat(vertex[name])
			if !ok {
				return nil, errors.Errorf("vertex %d: %s is %T, not a number", i, name, vertex[name])
			}
			v[j] = f
		}
		if err := pc.Set(r3.Vector{X: v[0], Y: v[1], Z: v[2]}); err != nil {
			return nil, errors.Wrapf(err, "vertex %d", i)
		}
	}
	return pc, nil
}
