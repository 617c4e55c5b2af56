package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/weedscan/weedpipe/logging"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
	// PCDCompressed binary format for pcd.
	PCDCompressed PCDType = 2
)

// Extensions of the file formats clouds can be written to.
const (
	ExtPLY = ".ply"
	ExtPCD = ".pcd"
	ExtLAS = ".las"
)

// IsCloudExt reports whether clouds can be written to files with the extension ext.
func IsCloudExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ExtPLY, ExtPCD, ExtLAS:
		return true
	}
	return false
}

// NewFromFile returns a pointcloud read in from the given file. The format is picked from the
// file extension.
func NewFromFile(fn string, logger logging.Logger) (PointCloud, error) {
	switch strings.ToLower(filepath.Ext(fn)) {
	case ExtLAS:
		return NewFromLASFile(fn, logger)
	case ExtPCD, ExtPLY:
		//nolint:gosec
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer utils.UncheckedErrorFunc(f.Close)
		var pc PointCloud
		if strings.ToLower(filepath.Ext(fn)) == ExtPCD {
			pc, err = ReadPCD(f)
		} else {
			pc, err = ReadPLY(f)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %q", fn)
		}
		logger.Debugw("read point cloud", "path", fn, "points", pc.Size())
		return pc, nil
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// WriteToFile writes the cloud to fn in the format named by its extension. binaryFormat selects
// binary_little_endian PLY or binary PCD and is ignored for LAS, which is always binary.
func WriteToFile(cloud PointCloud, fn string, binaryFormat bool) (err error) {
	ext := strings.ToLower(filepath.Ext(fn))
	if !IsCloudExt(ext) {
		return errors.Errorf("do not know how to write file %q", fn)
	}
	if ext == ExtLAS {
		return WriteToLASFile(cloud, fn)
	}

	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if ext == ExtPLY {
		plyType := PLYAscii
		if binaryFormat {
			plyType = PLYBinaryLittleEndian
		}
		err = ToPLY(cloud, w, plyType)
	} else {
		pcdType := PCDAscii
		if binaryFormat {
			pcdType = PCDBinary
		}
		err = ToPCD(cloud, w, pcdType)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}

// NewFromLASFile returns a point cloud from reading a LAS file. If any
// lossiness of points could occur from reading it in, it's reported but is not
// an error.
func NewFromLASFile(fn string, logger logging.Logger) (PointCloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	pc := NewWithPrealloc(max(0, min(lf.Header.NumberPoints, maxPreallocPoints)))
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()

		x, y, z := data.X, data.Y, data.Z
		if x < minPreciseFloat64 || x > maxPreciseFloat64 ||
			y < minPreciseFloat64 || y > maxPreciseFloat64 ||
			z < minPreciseFloat64 || z > maxPreciseFloat64 {
			logger.Warnw("potential floating point lossiness for LAS point",
				"point", data, "range", fmt.Sprintf("[%f,%f]", minPreciseFloat64, maxPreciseFloat64))
		}

		if err := pc.Set(r3.Vector{X: x, Y: y, Z: z}); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// WriteToLASFile writes the point cloud out to a LAS file.
func WriteToLASFile(cloud PointCloud, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return
	}
	defer func() {
		cerr := lf.Close()
		err = multierr.Combine(err, cerr)
	}()

	if err = lf.AddHeader(lidario.LasHeader{
		PointFormatID: 0,
	}); err != nil {
		return
	}

	var lastErr error
	cloud.Iterate(0, 0, func(pos r3.Vector) bool {
		pr0 := &lidario.PointRecord0{
			// floating point lossiness validated from set
			X: pos.X,
			Y: pos.Y,
			Z: pos.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3) | (0 << 6) | (0 << 7),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: 0,
			},
			ScanAngle:     0,
			UserData:      0,
			PointSourceID: 1,
		}
		if lerr := lf.AddLasPoint(pr0); lerr != nil {
			lastErr = lerr
			return false
		}
		return true
	})
	if lastErr != nil {
		err = lastErr
		return
	}

	// nolint:nakedret
	return
}

// ToPCD writes the cloud in PCD v0.7 format with float32 x y z fields in meters.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	var dataLine string
	switch outputType {
	case PCDBinary:
		dataLine = "DATA binary\n"
	case PCDAscii:
		dataLine = "DATA ascii\n"
	case PCDCompressed:
		return errors.New("compressed PCD not yet implemented")
	default:
		return errors.Errorf("unknown pcd type %d", outputType)
	}

	_, err := fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS x y z\n"+
		"SIZE 4 4 4\n"+
		"TYPE F F F\n"+
		"COUNT 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"%s",
		cloud.Size(),
		1,
		cloud.Size(),
		dataLine)
	if err != nil {
		return err
	}
	return writePCDData(cloud, out, outputType)
}

func writePCDData(cloud PointCloud, out io.Writer, pcdtype PCDType) error {
	var err error
	buf := make([]byte, 12)
	cloud.Iterate(0, 0, func(pos r3.Vector) bool {
		switch pcdtype {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(pos.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(pos.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(pos.Z)))
			_, err = out.Write(buf)
		case PCDAscii, PCDCompressed:
			_, err = fmt.Fprintf(out, "%s %s %s\n", formatFloat32(pos.X), formatFloat32(pos.Y), formatFloat32(pos.Z))
		}
		return err == nil
	})
	return err
}

// formatFloat32 prints the shortest text that reads back as the same float32.
func formatFloat32(v float64) string {
	return strconv.FormatFloat(float64(float32(v)), 'g', -1, 32)
}

type pcdValType string

const (
	pcdValFloat pcdValType = "F"
	pcdValInt   pcdValType = "I"
	pcdValUInt  pcdValType = "U"
)

type pcdHeader struct {
	fields []string
	size   []uint64
	type_  []pcdValType
	count  []uint64
	width  uint64
	height uint64
	points uint64
	data   PCDType

	// position of x, y and z among fields
	xyz [3]int
}

const pcdCommentChar = "#"

const (
	// maxPreallocPoints caps the capacity reserved up front from a count read out of a file.
	// Clouds larger than this grow as points are decoded.
	maxPreallocPoints = 1 << 20
	// maxPCDFieldCount bounds the COUNT of any pcd field.
	maxPCDFieldCount = 1 << 16
)

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	var err error
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	tokens := strings.Fields(value)
	if field != name {
		return errors.Errorf("line is supposed to start with %s but is %s", name, line)
	}

	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		header.fields = tokens
		header.xyz = [3]int{-1, -1, -1}
		for i, token := range tokens {
			switch token {
			case "x":
				header.xyz[0] = i
			case "y":
				header.xyz[1] = i
			case "z":
				header.xyz[2] = i
			}
		}
		if header.xyz[0] < 0 || header.xyz[1] < 0 || header.xyz[2] < 0 {
			return errors.Errorf("unsupported pcd fields %s", value)
		}
	case "SIZE":
		if len(tokens) != len(header.fields) {
			return errors.New("unexpected number of fields in SIZE line")
		}
		header.size = make([]uint64, len(tokens))
		for i, token := range tokens {
			header.size[i], err = strconv.ParseUint(token, 10, 64)
			if err != nil {
				return errors.Errorf("invalid SIZE field %s", token)
			}
			if s := header.size[i]; s != 1 && s != 2 && s != 4 && s != 8 {
				return errors.Errorf("invalid SIZE field %s: must be 1, 2, 4 or 8", token)
			}
		}
	case "TYPE":
		if len(tokens) != len(header.fields) {
			return errors.New("unexpected number of fields in TYPE line")
		}
		header.type_ = make([]pcdValType, len(tokens))
		for i, token := range tokens {
			switch t := pcdValType(token); t {
			case pcdValFloat, pcdValInt, pcdValUInt:
				header.type_[i] = t
			default:
				return errors.Errorf("invalid TYPE field %s", token)
			}
		}
		for _, i := range header.xyz {
			if header.type_[i] != pcdValFloat || (header.size[i] != 4 && header.size[i] != 8) {
				return errors.Errorf("pcd field %s must be a 4 or 8 byte float", header.fields[i])
			}
		}
	case "COUNT":
		if len(tokens) != len(header.fields) {
			return errors.New("unexpected number of fields in COUNT line")
		}
		header.count = make([]uint64, len(tokens))
		for i, token := range tokens {
			header.count[i], err = strconv.ParseUint(token, 10, 64)
			if err != nil {
				return errors.Errorf("invalid COUNT field %s: %s", token, err)
			}
			if header.count[i] > maxPCDFieldCount {
				return errors.Errorf("invalid COUNT field %s: exceeds %d", token, maxPCDFieldCount)
			}
		}
		for _, i := range header.xyz {
			if header.count[i] != 1 {
				return errors.Errorf("pcd field %s must have a count of 1", header.fields[i])
			}
		}
	case "WIDTH":
		header.width, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid WIDTH field %s: %s", value, err)
		}
	case "HEIGHT":
		header.height, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid HEIGHT field %s: %s", value, err)
		}
	case "VIEWPOINT":
		// the viewpoint is validated but clouds are always stored in the camera frame
		if len(tokens) != 7 {
			return errors.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
		for _, token := range tokens {
			if _, err = strconv.ParseFloat(token, 64); err != nil {
				return errors.Errorf("invalid VIEWPOINT field %s: %s", token, err)
			}
		}
	case "POINTS":
		var points uint64
		points, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid POINTS field %s: %s", value, err)
		}
		hi, area := bits.Mul64(header.width, header.height)
		if hi != 0 {
			return errors.Errorf("WIDTH*HEIGHT overflows (%d*%d)", header.width, header.height)
		}
		if points != area {
			return errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", points, area)
		}
		if points > math.MaxInt {
			return errors.Errorf("POINTS field %d is too large", points)
		}
		header.points = points
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		case "binary_compressed":
			header.data = PCDCompressed
		default:
			return errors.Errorf("unsupported pcd data type %s", value)
		}
	}

	return nil
}

// ReadPCD reads an ascii or binary PCD stream. Only the x, y and z fields are kept.
func ReadPCD(inRaw io.Reader) (PointCloud, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Errorf("error reading header line %d: %s", headerLineCount, err)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, headerLineCount, &header); err != nil {
			return nil, err
		}
		headerLineCount++
	}
	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	case PCDCompressed:
		return nil, errors.New("compressed pcd not yet supported")
	default:
		return nil, errors.Errorf("unsupported pcd data type %v", header.data)
	}
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	pc := NewWithPrealloc(min(int(header.points), maxPreallocPoints))
	for i := 0; i < int(header.points); i++ {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		tokens := strings.Fields(line)
		if len(tokens) != len(header.fields) {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		var xyz [3]float64
		for j, field := range header.xyz {
			// 4 byte fields are rounded to float32 just like their binary form
			xyz[j], err = strconv.ParseFloat(tokens[field], int(header.size[field])*8)
			if err != nil {
				return nil, errors.Errorf("invalid point %d field %s: %s", i, tokens[field], err)
			}
		}
		if err := pc.Set(r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}); err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
	}
	return pc, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	offsets := make([]int, len(header.fields))
	stride := 0
	for i := range header.fields {
		offsets[i] = stride
		stride += int(header.size[i] * header.count[i])
	}
	buf := make([]byte, stride)
	pc := NewWithPrealloc(min(int(header.points), maxPreallocPoints))
	for i := 0; i < int(header.points); i++ {
		if _, err := io.ReadFull(in, buf); err != nil {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		var xyz [3]float64
		for j, field := range header.xyz {
			raw := buf[offsets[field]:]
			if header.size[field] == 8 {
				xyz[j] = math.Float64frombits(binary.LittleEndian.Uint64(raw))
			} else {
				xyz[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
			}
		}
		if err := pc.Set(r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}); err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
	}
	return pc, nil
}
