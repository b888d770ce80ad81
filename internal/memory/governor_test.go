package memory

import (
	"context"
	"errors"
	"image"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"watermark/internal/logging"
	"watermark/internal/raster"
)

type fakeMemory struct {
	used     atomic.Uint64
	reclaims atomic.Int64
	fail     atomic.Bool
}

func (f *fakeMemory) sample() (uint64, error) {
	if f.fail.Load() {
		return 0, errors.New("sample unavailable")
	}
	return f.used.Load(), nil
}

func (f *fakeMemory) reclaim() {
	f.reclaims.Add(1)
}

func newTestGovernor(budget Budget, mem *fakeMemory) *Governor {
	return NewGovernor(budget, logging.NewNop(), WithSampler(mem.sample), WithReclaimer(mem.reclaim))
}

func TestMixedModeReclaimsOnThresholdBeforeBatch(t *testing.T) {
	mem := &fakeMemory{}
	mem.used.Store(64 << 20)
	g := newTestGovernor(Budget{ByteThreshold: 1 << 20, BatchSize: 20, MixedMode: true}, mem)

	if !g.AfterJob(1) {
		t.Fatal("expected reclamation after the first job")
	}
	if mem.reclaims.Load() != 1 || g.Reclaims() != 1 {
		t.Fatalf("expected one reclaim, got %d/%d", mem.reclaims.Load(), g.Reclaims())
	}
	if g.PeakBytes() != 64<<20 {
		t.Fatalf("unexpected peak %d", g.PeakBytes())
	}
}

func TestMixedModeFallsBackToBatchCount(t *testing.T) {
	mem := &fakeMemory{}
	mem.used.Store(1 << 10)
	g := newTestGovernor(Budget{ByteThreshold: 1 << 20, BatchSize: 3, MixedMode: true}, mem)

	var fired []int64
	for completed := int64(1); completed <= 7; completed++ {
		if g.AfterJob(completed) {
			fired = append(fired, completed)
		}
	}
	if len(fired) != 2 || fired[0] != 3 || fired[1] != 6 {
		t.Fatalf("unexpected reclaim points %v", fired)
	}
}

func TestBatchOnlyIgnoresMemory(t *testing.T) {
	mem := &fakeMemory{}
	mem.used.Store(math.MaxUint32)
	g := newTestGovernor(Budget{ByteThreshold: 1, BatchSize: 2}, mem)

	if g.AfterJob(1) {
		t.Fatal("non-mixed mode must not sample memory per job")
	}
	if !g.AfterJob(2) {
		t.Fatal("expected batch reclamation at multiple of batch size")
	}
	if g.PeakBytes() != 0 {
		t.Fatal("non-mixed AfterJob must not sample")
	}
}

func TestCheckNow(t *testing.T) {
	mem := &fakeMemory{}
	g := newTestGovernor(Budget{ByteThreshold: 100}, mem)

	mem.used.Store(100)
	if g.CheckNow() {
		t.Fatal("usage equal to threshold must not reclaim")
	}
	mem.used.Store(101)
	if !g.CheckNow() {
		t.Fatal("expected reclaim above threshold")
	}
	mem.fail.Store(true)
	if g.CheckNow() {
		t.Fatal("sample failure must not reclaim")
	}
}

func TestSamplerReclaimsAndStops(t *testing.T) {
	mem := &fakeMemory{}
	mem.used.Store(1 << 30)
	g := newTestGovernor(Budget{SampleInterval: 5 * time.Millisecond, ByteThreshold: 1 << 20}, mem)

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := g.Start(context.Background()); err == nil {
		t.Fatal("expected error starting twice")
	}
	deadline := time.Now().Add(2 * time.Second)
	for mem.reclaims.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	g.Stop()
	if mem.reclaims.Load() == 0 {
		t.Fatal("sampler never requested reclamation")
	}

	after := mem.reclaims.Load()
	time.Sleep(30 * time.Millisecond)
	if mem.reclaims.Load() != after {
		t.Fatal("sampler kept running after Stop returned")
	}
	g.Stop()
}

func TestSamplerDisabledWithoutInterval(t *testing.T) {
	g := newTestGovernor(Budget{ByteThreshold: 1}, &fakeMemory{})
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	g.Stop()
}

func TestPrecompressLargeImage(t *testing.T) {
	g := newTestGovernor(Budget{Precompress: true, LargeImageThreshold: 3000}, &fakeMemory{})
	img := image.NewNRGBA(image.Rect(0, 0, 6000, 4000))

	out, shrunk := g.Precompress(raster.NewImaging(), img)
	if !shrunk {
		t.Fatal("expected precompression")
	}
	if b := out.Bounds(); b.Dx() != 3000 || b.Dy() != 2000 {
		t.Fatalf("unexpected size %dx%d", b.Dx(), b.Dy())
	}
}

func TestPrecompressKeepsAspect(t *testing.T) {
	g := newTestGovernor(Budget{Precompress: true, LargeImageThreshold: 1000}, &fakeMemory{})
	img := image.NewNRGBA(image.Rect(0, 0, 1234, 2345))

	out, shrunk := g.Precompress(raster.NewImaging(), img)
	if !shrunk {
		t.Fatal("expected precompression")
	}
	b := out.Bounds()
	if b.Dy() < 999 || b.Dy() > 1001 {
		t.Fatalf("longer side %d, want 1000", b.Dy())
	}
	want := 1234.0 / 2345.0
	if got := float64(b.Dx()) / float64(b.Dy()); math.Abs(got-want) > 0.01 {
		t.Fatalf("aspect %v, want %v", got, want)
	}
}

func TestPrecompressDisabledOrSmall(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 6000, 4000))
	off := newTestGovernor(Budget{LargeImageThreshold: 3000}, &fakeMemory{})
	if out, shrunk := off.Precompress(raster.NewImaging(), img); shrunk || out != img {
		t.Fatal("precompression must be opt-in")
	}

	on := newTestGovernor(Budget{Precompress: true, LargeImageThreshold: 6000}, &fakeMemory{})
	if out, shrunk := on.Precompress(raster.NewImaging(), img); shrunk || out != img {
		t.Fatal("images within the threshold must be untouched")
	}
}

func TestReclaimIsUnconditional(t *testing.T) {
	mem := &fakeMemory{}
	g := newTestGovernor(Budget{}, mem)
	g.Reclaim()
	if mem.reclaims.Load() != 1 || g.Reclaims() != 1 {
		t.Fatalf("expected one reclaim, got %d", mem.reclaims.Load())
	}
}
