package pointcloud

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPLYRoundTrip(t *testing.T) {
	cloud, err := NewFromPoints([]r3.Vector{
		{X: 0, Y: 0, Z: 1},
		{X: 0.4, Y: -0.123456789, Z: 2},
		{X: 5, Y: 5, Z: 5},
	})
	test.That(t, err, test.ShouldBeNil)

	for _, plyType := range []PLYType{PLYAscii, PLYBinaryLittleEndian} {
		t.Run(plyType.String(), func(t *testing.T) {
			var buf bytes.Buffer
			test.That(t, ToPLY(cloud, &buf, plyType), test.ShouldBeNil)
			test.That(t, buf.String(), test.ShouldStartWith, "ply\nformat "+plyType.String()+" 1.0\nelement vertex 3\n")

			read, err := ReadPLY(&buf)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, Points(read), test.ShouldResemble, Points(cloud))
		})
	}
}

func TestReadPLYForeignLayouts(t *testing.T) {
	t.Run("ascii with extra properties and faces", func(t *testing.T) {
		text := strings.Join([]string{
			"ply",
			"format ascii 1.0",
			"comment made elsewhere",
			"element vertex 2",
			"property float x",
			"property float y",
			"property float z",
			"property uchar red",
			"element face 1",
			"property list uchar int vertex_indices",
			"end_header",
			"1 2 3 255",
			"4.5 5 6 0",
			"3 0 1 1",
		}, "\n") + "\n"
		read, err := ReadPLY(strings.NewReader(text))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, Points(read), test.ShouldResemble, []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: 4.5, Y: 5, Z: 6}})
	})

	t.Run("binary float32 after a skipped element", func(t *testing.T) {
		var buf bytes.Buffer
		buf.WriteString("ply\nformat binary_little_endian 1.0\n" +
			"element camera 1\nproperty short id\n" +
			"element vertex 1\nproperty float z\nproperty float x\nproperty float y\nend_header\n")
		test.That(t, binary.Write(&buf, binary.LittleEndian, int16(9)), test.ShouldBeNil)
		for _, v := range []float32{3, 1, 2} {
			test.That(t, binary.Write(&buf, binary.LittleEndian, math.Float32bits(v)), test.ShouldBeNil)
		}
		read, err := ReadPLY(&buf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, Points(read), test.ShouldResemble, []r3.Vector{{X: 1, Y: 2, Z: 3}})
	})
}

func TestReadPLYErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		text   string
		errStr string
	}{
		{"not ply", "solid cube\n", "not a ply file"},
		{"big endian", "ply\nformat binary_big_endian 1.0\nelement vertex 0\nend_header\n", "unsupported ply format"},
		{"no vertex", "ply\nformat ascii 1.0\nelement face 0\nend_header\n", "no vertex element"},
		{"missing z", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nend_header\n1 2\n", "x, y and z"},
		{"huge count", "ply\nformat ascii 1.0\nelement vertex 100000000000000000\nproperty float x\nproperty float y\nproperty float z\nend_header\n", "exceeds limit"},
		{"count overflows", "ply\nformat ascii 1.0\nelement vertex 18446744073709551616\nend_header\n", "bad ply element count"},
		{"negative count", "ply\nformat ascii 1.0\nelement vertex -1\nend_header\n", "bad ply element count"},
		{"huge skipped element", "ply\nformat ascii 1.0\nelement face 9223372036854775807\nelement vertex 0\nend_header\n", "exceeds limit"},
		{"no format", "ply\nelement vertex 0\nend_header\n", "no format line"},
		{"bad type", "ply\nformat ascii 1.0\nelement vertex 0\nproperty quad x\nend_header\n", "unknown ply property type"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadPLY(strings.NewReader(tc.text))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errStr)
		})
	}
}
