package scanner

import (
	"context"
	"image"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/LdDl/tcg-scanner/catalogue"
	"github.com/LdDl/tcg-scanner/detector"
	"github.com/LdDl/tcg-scanner/fingerprint"
	"github.com/LdDl/tcg-scanner/internal/testutil"
	"github.com/LdDl/tcg-scanner/mot"
	"github.com/LdDl/tcg-scanner/rectify"
	"github.com/disintegration/imaging"
)

// builtCatalogue fingerprints reference card images with catalogue.Builder and mixes them with random entries
func builtCatalogue(t *testing.T, fp *fingerprint.Fingerprinter, references map[string]image.Image) *catalogue.Catalogue {
	t.Helper()
	dir := t.TempDir()
	rows := make([]catalogue.ManifestRow, 0, len(references))
	for id, ref := range references {
		name := id + ".png"
		if err := imaging.Save(ref, filepath.Join(dir, name)); err != nil {
			t.Fatalf("Can't save reference image: %v", err)
		}
		rows = append(rows, catalogue.ManifestRow{
			Entry: catalogue.Entry{ID: id, LocalID: "4", SetName: "Base Set", Name: "Charizard"},
			Image: name,
		})
	}
	builder := catalogue.NewBuilder(fp, rectify.DefaultWidth, rectify.DefaultHeight, 2, nil)
	built, stats, err := builder.Build(context.Background(), rows, dir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Hashed != len(references) {
		t.Fatalf("Expected %d hashed references, got %d", len(references), stats.Hashed)
	}
	rng := rand.New(rand.NewSource(5))
	entries := make([]catalogue.Entry, 0, 200+len(built))
	for i := 0; i < 200; i++ {
		entries = append(entries, catalogue.Entry{ID: "random", Name: "Random", Hash: testutil.RandomHash(rng, fp.Length())})
	}
	entries = append(entries, built...)
	c, dropped, err := catalogue.New(entries, fp.Length())
	if err != nil {
		t.Fatal(err)
	}
	if dropped != 0 {
		t.Fatalf("Expected no dropped entries, got %d", dropped)
	}
	return c
}

func scanSingleCard(t *testing.T, frame image.Image, card image.Rectangle, mirror bool, matcher catalogue.Matcher, fp *fingerprint.Fingerprinter) TrackResult {
	t.Helper()
	det := detector.Static{{BBox: mot.NewRectFrom(card), Polygon: testutil.RectPolygon(card), Confidence: 0.9}}
	rectifier := rectify.New(rectify.DefaultWidth, rectify.DefaultHeight, mirror)
	s := New(det, mot.NewDefaultManager[catalogue.MatchResult](), rectifier, fp, matcher, WithFrameSize(frameSize))
	result, err := s.ScanImage(context.Background(), frame)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tracks) != 1 {
		t.Fatalf("Expected 1 track, got %d", len(result.Tracks))
	}
	return result.Tracks[0]
}

func TestScanImageFindsBuiltEntry(t *testing.T) {
	fp, err := fingerprint.New(fingerprint.DefaultHashSize)
	if err != nil {
		t.Fatal(err)
	}
	ref := testutil.CardTexture(rectify.DefaultWidth, rectify.DefaultHeight, 21)
	c := builtCatalogue(t, fp, map[string]image.Image{
		"base1-4":  ref,
		"base1-10": testutil.CardTexture(rectify.DefaultWidth, rectify.DefaultHeight, 22),
	})
	threshold := catalogue.Threshold(fingerprint.DefaultHashSize)
	card := image.Rect(100, 100, 100+rectify.DefaultWidth, 100+rectify.DefaultHeight)
	frame := testutil.Frame(frameSize, map[image.Point]image.Image{card.Min: ref})

	for _, matcher := range []catalogue.Matcher{catalogue.NewLinearMatcher(c, threshold), catalogue.NewIndexedMatcher(c, threshold, 0)} {
		trk := scanSingleCard(t, frame, card, false, matcher, fp)
		if trk.Match == nil {
			t.Fatalf("Track should be identified")
		}
		if trk.Match.ID != "base1-4" {
			t.Errorf("Expected base1-4, got %s", trk.Match.ID)
		}
		if trk.Match.Rotated {
			t.Errorf("Match should come from upright fingerprint")
		}
		if float64(trk.Match.Distance) >= threshold/4 {
			t.Errorf("Expected distance well below %f, got %d", threshold, trk.Match.Distance)
		}
	}
}

func TestScanImageMirroredCamera(t *testing.T) {
	fp, err := fingerprint.New(fingerprint.DefaultHashSize)
	if err != nil {
		t.Fatal(err)
	}
	ref := testutil.CardTexture(rectify.DefaultWidth, rectify.DefaultHeight, 31)
	c := builtCatalogue(t, fp, map[string]image.Image{"base1-4": ref})
	threshold := catalogue.Threshold(fingerprint.DefaultHashSize)
	card := image.Rect(100, 100, 100+rectify.DefaultWidth, 100+rectify.DefaultHeight)
	// Camera mirrors the whole frame: card is flipped and moves to the other side
	frame := imaging.FlipH(testutil.Frame(frameSize, map[image.Point]image.Image{card.Min: ref}))
	mirrored := image.Rect(frameSize-card.Max.X, card.Min.Y, frameSize-card.Min.X, card.Max.Y)

	trk := scanSingleCard(t, frame, mirrored, true, catalogue.NewLinearMatcher(c, threshold), fp)
	if trk.Match == nil {
		t.Fatalf("Track should be identified")
	}
	if trk.Match.ID != "base1-4" {
		t.Errorf("Expected base1-4, got %s", trk.Match.ID)
	}
	if trk.Match.Rotated {
		t.Errorf("Match should come from upright fingerprint")
	}
	if float64(trk.Match.Distance) >= threshold/4 {
		t.Errorf("Expected distance well below %f, got %d", threshold, trk.Match.Distance)
	}
}
