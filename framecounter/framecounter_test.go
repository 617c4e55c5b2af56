package framecounter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/weedscan/weedpipe/logging"
	"github.com/weedscan/weedpipe/utils"
)

func TestFileStoreMissingFileStartsAtZero(t *testing.T) {
	store := NewFileStore(utils.NewMemoryFileSystem(), "state/frame_counter.json")
	state, err := store.Load(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state, test.ShouldResemble, State{NextFrame: 0})
}

func TestFileStoreRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		fsys utils.FileSystem
		path string
	}{
		{"memory", utils.NewMemoryFileSystem(), "state/frame_counter.json"},
		{"os", utils.OSFileSystem{}, filepath.Join(t.TempDir(), "nested", "frame_counter.json")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewFileStore(tc.fsys, tc.path)
			test.That(t, store.Path(), test.ShouldEqual, tc.path)
			test.That(t, store.Save(ctx, State{NextFrame: 42}), test.ShouldBeNil)

			data, err := tc.fsys.ReadFile(tc.path)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, string(data), test.ShouldEqual, "{\n  \"next_frame\": 42\n}\n")

			state, err := store.Load(ctx)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, state.NextFrame, test.ShouldEqual, 42)
		})
	}
}

func TestFileStoreCorruptState(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
	}{
		{"not json", "next_frame=3"},
		{"fraction", `{"next_frame": 1.5}`},
		{"string", `{"next_frame": "7"}`},
		{"negative", `{"next_frame": -1}`},
		{"missing field", `{}`},
		{"unknown field", `{"next_frame": 1, "extra": true}`},
		{"empty", ``},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fsys := utils.NewMemoryFileSystem()
			test.That(t, fsys.WriteFile("frame_counter.json", []byte(tc.content), 0o600), test.ShouldBeNil)
			_, err := NewFileStore(fsys, "frame_counter.json").Load(context.Background())
			test.That(t, errors.Is(err, ErrCounterState), test.ShouldBeTrue)
		})
	}
}

func TestStoresRejectNegativeSave(t *testing.T) {
	ctx := context.Background()
	err := NewFileStore(utils.NewMemoryFileSystem(), "c.json").Save(ctx, State{NextFrame: -2})
	test.That(t, errors.Is(err, ErrCounterState), test.ShouldBeTrue)
	err = NewMemoryStore(State{}).Save(ctx, State{NextFrame: -2})
	test.That(t, errors.Is(err, ErrCounterState), test.ShouldBeTrue)
}

func TestAllocatorBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(State{NextFrame: 100})
	alloc := NewAllocator(store, logging.NewTestLogger(t))

	start, err := alloc.Next(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, start, test.ShouldEqual, 100)

	const rgbFrames = 7
	test.That(t, alloc.Commit(ctx, start+rgbFrames), test.ShouldBeNil)
	state, err := store.Load(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.NextFrame, test.ShouldEqual, 107)

	// a batch that extracted nothing leaves the counter where it was
	start, err = alloc.Next(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, alloc.Commit(ctx, start), test.ShouldBeNil)
	test.That(t, store.Saves(), test.ShouldEqual, 2)

	next, err := alloc.Next(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldEqual, 107)
}

func TestAllocatorRefusesToGoBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(State{NextFrame: 10})
	alloc := NewAllocator(store, logging.NewTestLogger(t))
	_, err := alloc.Next(ctx)
	test.That(t, err, test.ShouldBeNil)

	err = alloc.Commit(ctx, 9)
	test.That(t, errors.Is(err, ErrCounterState), test.ShouldBeTrue)
	test.That(t, store.Saves(), test.ShouldEqual, 0)
}

func TestAllocatorCorruptStateHalts(t *testing.T) {
	fsys := utils.NewMemoryFileSystem()
	test.That(t, fsys.WriteFile("frame_counter.json", []byte("{"), 0o600), test.ShouldBeNil)
	alloc := NewAllocator(NewFileStore(fsys, "frame_counter.json"), logging.NewTestLogger(t))

	_, err := alloc.Next(context.Background())
	test.That(t, errors.Is(err, ErrCounterState), test.ShouldBeTrue)

	test.That(t, alloc.Reset(context.Background(), 0), test.ShouldBeNil)
	next, err := alloc.Next(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldEqual, 0)
}

func TestAllocatorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	alloc := NewAllocator(NewMemoryStore(State{}), logging.NewTestLogger(t))
	_, err := alloc.Next(ctx)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}
