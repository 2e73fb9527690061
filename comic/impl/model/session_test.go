package model

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingCloser struct {
	name  string
	order *[]string
	err   error
}

func (c recordingCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestSessionLoadAsset(t *testing.T) {
	session, err := Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	path, err := session.LoadAsset("nested/bubble.onnx", strings.NewReader("weights"))
	if err != nil {
		t.Fatalf("LoadAsset() error = %v", err)
	}
	if filepath.Base(path) != "bubble.onnx" {
		t.Errorf("asset path = %s, want a file named bubble.onnx", path)
	}
	content, err := os.ReadFile(path)
	if err != nil || string(content) != "weights" {
		t.Fatalf("asset content = %q, %v", content, err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("asset still exists after Close(): %v", err)
	}
	if _, err := session.LoadAsset("late.onnx", strings.NewReader("")); err == nil {
		t.Errorf("LoadAsset() after Close() returned no error")
	}
}

func TestSessionLoadAssetFile(t *testing.T) {
	source := filepath.Join(t.TempDir(), "det.onnx")
	if err := os.WriteFile(source, []byte("det"), 0644); err != nil {
		t.Fatal(err)
	}
	session, _ := Open()
	defer session.Close()

	path, err := session.LoadAssetFile(source)
	if err != nil {
		t.Fatalf("LoadAssetFile() error = %v", err)
	}
	if path == source {
		t.Errorf("asset was not copied into the session")
	}
	if _, err := session.LoadAssetFile(filepath.Join(t.TempDir(), "missing.onnx")); err == nil {
		t.Errorf("LoadAssetFile() of a missing file returned no error")
	}
}

func TestSessionCloseReleasesEverything(t *testing.T) {
	session, _ := Open()
	order := []string{}
	first := errors.New("first failed")
	third := errors.New("third failed")
	session.Track("first", recordingCloser{name: "first", order: &order, err: first})
	session.Track("second", recordingCloser{name: "second", order: &order})
	session.Track("third", recordingCloser{name: "third", order: &order, err: third})

	err := session.Close()

	if strings.Join(order, ",") != "third,second,first" {
		t.Errorf("release order = %v, want reverse registration order", order)
	}
	if !errors.Is(err, first) || !errors.Is(err, third) {
		t.Errorf("Close() error = %v, want both failures joined", err)
	}
	if err := session.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}
