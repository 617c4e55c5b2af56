package pointcloud

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/weedscan/weedpipe/logging"
)

func TestPCDRoundTrip(t *testing.T) {
	cloud, err := NewFromPoints([]r3.Vector{
		{X: 0, Y: 0, Z: 1},
		{X: 0.4, Y: -0.123, Z: 2},
		{X: -5, Y: 5, Z: 9.5},
	})
	test.That(t, err, test.ShouldBeNil)

	for _, pcdType := range []PCDType{PCDAscii, PCDBinary} {
		var buf bytes.Buffer
		test.That(t, ToPCD(cloud, &buf, pcdType), test.ShouldBeNil)
		test.That(t, buf.String(), test.ShouldContainSubstring, "POINTS 3\n")

		read, err := ReadPCD(&buf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, read.Size(), test.ShouldEqual, 3)
		for i, p := range Points(read) {
			want := Points(cloud)[i]
			test.That(t, p.X, test.ShouldEqual, float64(float32(want.X)))
			test.That(t, p.Y, test.ShouldEqual, float64(float32(want.Y)))
			test.That(t, p.Z, test.ShouldEqual, float64(float32(want.Z)))
		}
	}

	var buf bytes.Buffer
	test.That(t, ToPCD(cloud, &buf, PCDCompressed), test.ShouldNotBeNil)
}

func TestReadPCDWithColorField(t *testing.T) {
	text := "# .PCD v0.7 - Point Cloud Data file format\n" +
		"VERSION .7\nFIELDS x y z rgb\nSIZE 4 4 4 4\nTYPE F F F I\nCOUNT 1 1 1 1\n" +
		"WIDTH 2\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS 2\nDATA ascii\n" +
		"0.5 0.25 1 16711680\n-1 2 3 255\n"
	read, err := ReadPCD(strings.NewReader(text))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, Points(read), test.ShouldResemble, []r3.Vector{{X: 0.5, Y: 0.25, Z: 1}, {X: -1, Y: 2, Z: 3}})
}

func TestReadPCDErrors(t *testing.T) {
	header := func(fields, data string) string {
		return "VERSION .7\nFIELDS " + fields + "\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n" +
			"WIDTH 2\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS 2\nDATA " + data + "\n"
	}
	sized := func(width, height, points string) string {
		return "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n" +
			"WIDTH " + width + "\nHEIGHT " + height + "\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS " + points + "\nDATA ascii\n"
	}
	for _, tc := range []struct {
		name   string
		text   string
		errStr string
	}{
		{"bad version", "VERSION .6\n", "unsupported pcd version"},
		{"no xyz", header("a b c", "ascii"), "unsupported pcd fields"},
		{"compressed", header("x y z", "binary_compressed"), "compressed"},
		{"short ascii", header("x y z", "ascii") + "1 2 3\n", "point 1"},
		{"short binary", header("x y z", "binary") + "abc", "point 0"},
		{"out of order", "FIELDS x y z\n", "supposed to start with VERSION"},
		{"odd size", "VERSION .7\nFIELDS x y z\nSIZE 4 4 3\n", "must be 1, 2, 4 or 8"},
		{"huge count", "VERSION .7\nFIELDS x y z i\nSIZE 4 4 4 4\nTYPE F F F U\nCOUNT 1 1 1 4294967296\n", "exceeds"},
		{"area overflows", sized("18446744073709551615", "2", "18446744073709551614"), "overflows"},
		{"points too large", sized("18446744073709551615", "1", "18446744073709551615"), "too large"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadPCD(strings.NewReader(tc.text))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errStr)
		})
	}
}

func TestReadPCDLargeDeclaredCount(t *testing.T) {
	// a declared count beyond the preallocation cap is read until the data runs out
	text := "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n" +
		"WIDTH 2000000\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS 2000000\nDATA ascii\n1 2 3\n"
	_, err := ReadPCD(strings.NewReader(text))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "point 1")
}

func TestWriteToFileAndNewFromFile(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	cloud := MakeTestPointCloud()

	for _, tc := range []struct {
		name   string
		binary bool
	}{
		{"frame_00000001.ply", false},
		{"frame_00000002.ply", true},
		{"frame_00000003.pcd", false},
		{"frame_00000004.PCD", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fn := filepath.Join(dir, tc.name)
			test.That(t, WriteToFile(cloud, fn, tc.binary), test.ShouldBeNil)
			read, err := NewFromFile(fn, logger)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, read.Size(), test.ShouldEqual, cloud.Size())
			for i, p := range Points(read) {
				test.That(t, p.Distance(Points(cloud)[i]), test.ShouldBeLessThan, 1e-6)
			}
		})
	}

	lasPath := filepath.Join(dir, "frame_00000005.las")
	test.That(t, WriteToFile(cloud, lasPath, false), test.ShouldBeNil)
	info, err := os.Stat(lasPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	err = WriteToFile(cloud, filepath.Join(dir, "frame.xyz"), false)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "do not know how to write")

	_, err = NewFromFile(filepath.Join(dir, "frame.xyz"), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "do not know how to read")

	_, err = NewFromFile(filepath.Join(dir, "missing.ply"), logger)
	test.That(t, err, test.ShouldNotBeNil)
}
