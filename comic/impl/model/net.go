package model

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Net is an ONNX network executed with the OpenCV DNN module. A network keeps per-call state,
// so Run holds a lock for the whole forward pass.
type Net struct {
	mu   sync.Mutex
	name string
	net  gocv.Net
}

// LoadNet copies the model at path into the session and reads it as an ONNX network. The
// network is released when the session closes.
func LoadNet(session *Session, name, path string) (*Net, error) {
	assetPath, err := session.LoadAssetFile(path)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(assetPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load %s network from %s", name, path)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set backend for %s: %w", name, err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set target for %s: %w", name, err)
	}

	n := &Net{name: name, net: net}
	session.Track(name, n)
	return n, nil
}

// Run feeds the named inputs and returns the first output. An empty input name binds the
// network's default input.
func (n *Net) Run(inputs map[string]Tensor) (Tensor, error) {
	mats := make([]gocv.Mat, 0, len(inputs))
	defer func() {
		for _, mat := range mats {
			mat.Close()
		}
	}()

	n.mu.Lock()
	defer n.mu.Unlock()

	for name, tensor := range inputs {
		mat, err := gocv.NewMatWithSizesFromBytes(tensor.Shape, gocv.MatTypeCV32F, tensor.bytes())
		if err != nil {
			return Tensor{}, fmt.Errorf("failed to create %s input %q: %w", n.name, name, err)
		}
		mats = append(mats, mat)
		n.net.SetInput(mat, name)
	}

	output := n.net.Forward("")
	defer output.Close()
	if output.Empty() {
		return Tensor{}, fmt.Errorf("%s network returned an empty output", n.name)
	}

	values, err := output.DataPtrFloat32()
	if err != nil {
		return Tensor{}, fmt.Errorf("failed to read %s output: %w", n.name, err)
	}
	data := make([]float32, len(values))
	copy(data, values)
	return Tensor{Shape: output.Size(), Data: data}, nil
}

func (n *Net) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.net.Close()
}
