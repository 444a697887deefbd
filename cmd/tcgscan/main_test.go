package main

import (
	"bytes"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LdDl/tcg-scanner/detector"
	"github.com/LdDl/tcg-scanner/fingerprint"
	"github.com/LdDl/tcg-scanner/internal/testutil"
	"github.com/LdDl/tcg-scanner/mot"
	"github.com/LdDl/tcg-scanner/rectify"
	"github.com/disintegration/imaging"
)

type cliTestEnv struct {
	dir        string
	configPath string
	framePath  string
	replayPath string
	csvPath    string
	dbPath     string
}

func setupCLITestEnv(t *testing.T) cliTestEnv {
	t.Helper()
	dir := t.TempDir()
	env := cliTestEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		framePath:  filepath.Join(dir, "frame.png"),
		replayPath: filepath.Join(dir, "replay.jsonl"),
		csvPath:    filepath.Join(dir, "catalogue.csv"),
		dbPath:     filepath.Join(dir, "catalogue.db"),
	}

	cardRect := image.Rect(100, 100, 300, 378)
	frame := testutil.Frame(640, map[image.Point]image.Image{cardRect.Min: testutil.CardTexture(cardRect.Dx(), cardRect.Dy(), 11)})
	if err := imaging.Save(frame, env.framePath); err != nil {
		t.Fatalf("save frame: %v", err)
	}
	decoded, err := imaging.Open(env.framePath)
	if err != nil {
		t.Fatalf("open frame: %v", err)
	}

	poly := testutil.RectPolygon(cardRect)
	card, ok := rectify.New(320, 444, false).Rectify(decoded, rectify.MaskFromPolygon(poly, 640, 640))
	if !ok {
		t.Fatalf("card should be rectified")
	}
	fp, err := fingerprint.New(16)
	if err != nil {
		t.Fatal(err)
	}
	computed, err := fp.Compute(card)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(3))
	var csvBuf bytes.Buffer
	csvBuf.WriteString("ID,Local_ID,Set_ID,Set_Name,Name,hash\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&csvBuf, "random-%d,%d,rnd,Random,Random,%s\n", i, i, testutil.RandomHash(rng, fp.Length()))
	}
	fmt.Fprintf(&csvBuf, "base1-4,4,base1,Base Set,Charizard,%s\n", computed.Upright)
	csvBuf.WriteString("broken,1,base1,Base Set,Broken,xyz\n")
	if err := os.WriteFile(env.csvPath, csvBuf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	replay, err := os.Create(env.replayPath)
	if err != nil {
		t.Fatal(err)
	}
	det := detector.Detection{BBox: mot.NewRectFrom(cardRect), Polygon: poly, Confidence: 0.95}
	if err := detector.WriteRecord(replay, "frame.png", []detector.Detection{det}); err != nil {
		t.Fatal(err)
	}
	replay.Close()

	configContent := fmt.Sprintf(`[matching]
catalogue = %q

[logging]
level = "error"
`, env.dbPath)
	if err := os.WriteFile(env.configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestCLICatalogueAndScan(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"catalogue", "import", env.csvPath, "--out", env.dbPath}, env.configPath)
	if err != nil {
		t.Fatalf("catalogue import: %v", err)
	}
	if !strings.Contains(out, "Imported 21 entries") || !strings.Contains(out, "1 dropped") {
		t.Fatalf("unexpected import output: %q", out)
	}

	out, err = runCLI(t, []string{"catalogue", "info", env.dbPath}, env.configPath)
	if err != nil {
		t.Fatalf("catalogue info: %v", err)
	}
	if !strings.Contains(out, "Usable entries: 21") || !strings.Contains(out, "Hash size: 16") {
		t.Fatalf("unexpected info output: %q", out)
	}

	out, err = runCLI(t, []string{"scan", "image", env.framePath, "--replay", env.replayPath}, env.configPath)
	if err != nil {
		t.Fatalf("scan image: %v", err)
	}
	if !strings.Contains(out, `"id":"base1-4"`) {
		t.Fatalf("expected card base1-4 in scan output: %q", out)
	}
	if !strings.Contains(out, `"description":"Charizard Base Set 4"`) {
		t.Fatalf("expected description in scan output: %q", out)
	}

	exported := filepath.Join(env.dir, "export.csv")
	if _, err := runCLI(t, []string{"catalogue", "export", env.dbPath, "--out", exported}, env.configPath); err != nil {
		t.Fatalf("catalogue export: %v", err)
	}
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "base1-4") {
		t.Fatalf("export misses base1-4: %q", string(data))
	}
}

func TestCLICatalogueBuildAndScan(t *testing.T) {
	env := setupCLITestEnv(t)
	refsDir := filepath.Join(env.dir, "refs")
	if err := os.MkdirAll(refsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	charizard := testutil.CardTexture(320, 444, 41)
	if err := imaging.Save(charizard, filepath.Join(refsDir, "base1-4.png")); err != nil {
		t.Fatalf("save reference: %v", err)
	}
	if err := imaging.Save(testutil.CardTexture(320, 444, 42), filepath.Join(refsDir, "base1-10.png")); err != nil {
		t.Fatalf("save reference: %v", err)
	}
	manifest := filepath.Join(refsDir, "manifest.csv")
	manifestContent := "ID,Local_ID,Set_ID,Set_Name,Name,image\n" +
		"base1-4,4,base1,Base Set,Charizard,base1-4.png\n" +
		"base1-10,10,base1,Base Set,Mewtwo,base1-10.png\n" +
		"base1-11,11,base1,Base Set,Nidoking,missing.png\n"
	if err := os.WriteFile(manifest, []byte(manifestContent), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, []string{"catalogue", "build", "--manifest", manifest, "--out", env.dbPath}, env.configPath)
	if err != nil {
		t.Fatalf("catalogue build: %v", err)
	}
	if !strings.Contains(out, "Built 2 of 3 entries") || !strings.Contains(out, "1 skipped") {
		t.Fatalf("unexpected build output: %q", out)
	}

	// Reference photographed as is: same image pasted into the frame
	cardRect := image.Rect(100, 100, 420, 544)
	framePath := filepath.Join(env.dir, "reference_frame.png")
	frame := testutil.Frame(640, map[image.Point]image.Image{cardRect.Min: charizard})
	if err := imaging.Save(frame, framePath); err != nil {
		t.Fatalf("save frame: %v", err)
	}
	replayPath := filepath.Join(env.dir, "reference_replay.jsonl")
	replay, err := os.Create(replayPath)
	if err != nil {
		t.Fatal(err)
	}
	det := detector.Detection{BBox: mot.NewRectFrom(cardRect), Polygon: testutil.RectPolygon(cardRect), Confidence: 0.95}
	if err := detector.WriteRecord(replay, "reference_frame.png", []detector.Detection{det}); err != nil {
		t.Fatal(err)
	}
	replay.Close()

	out, err = runCLI(t, []string{"scan", "image", framePath, "--replay", replayPath}, env.configPath)
	if err != nil {
		t.Fatalf("scan image: %v", err)
	}
	if !strings.Contains(out, `"id":"base1-4"`) {
		t.Fatalf("expected card base1-4 in scan output: %q", out)
	}
	if !strings.Contains(out, `"rotated":false`) {
		t.Errorf("expected upright match in scan output: %q", out)
	}
}

func TestCLIScanFrames(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, []string{"catalogue", "import", env.csvPath, "--out", env.dbPath}, env.configPath); err != nil {
		t.Fatalf("catalogue import: %v", err)
	}
	framesDir := filepath.Join(env.dir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(env.framePath)
	if err != nil {
		t.Fatal(err)
	}
	replay, err := os.ReadFile(env.replayPath)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(filepath.Join(framesDir, fmt.Sprintf("%03d.png", i)), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// One recorded frame of detections per image
	if err := os.WriteFile(env.replayPath, bytes.Repeat(replay, 3), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, []string{"scan", "frames", framesDir, "--replay", env.replayPath}, env.configPath)
	if err != nil {
		t.Fatalf("scan frames: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 JSON lines, got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], `"identified":[1]`) {
		t.Errorf("first frame should identify track 1: %q", lines[0])
	}
	for _, line := range lines[1:] {
		if strings.Contains(line, `"identified"`) {
			t.Errorf("track should be identified only once: %q", line)
		}
		if !strings.Contains(line, `"id":"base1-4"`) {
			t.Errorf("identity should be kept: %q", line)
		}
	}
}

func TestCLIConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, err := runCLI(t, []string{"config", "init", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := runCLI(t, []string{"config", "init", target}, ""); err == nil {
		t.Fatalf("expected error for existing config")
	}
	if _, err := runCLI(t, []string{"config", "init", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}
