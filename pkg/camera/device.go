package camera

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/MrCodeEU/facepunch/pkg/logging"
)

// Device captures frames through OpenCV's VideoCapture.
type Device struct {
	mu   sync.Mutex
	cap  *gocv.VideoCapture
	mat  gocv.Mat
	info DeviceInfo
	open bool
}

// Open opens the capture device described by opts.
func Open(opts Options) (*Device, error) {
	index, path, err := ParseDevice(opts.Device)
	if err != nil {
		return nil, err
	}

	var source interface{} = path
	if index >= 0 {
		source = index
	}

	vc, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCameraNotFound, path, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrCameraNotFound, path)
	}

	if opts.Width > 0 && opts.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}
	if opts.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(opts.FPS))
	}

	d := &Device{
		cap: vc,
		mat: gocv.NewMat(),
		info: DeviceInfo{
			Path:   path,
			Index:  index,
			Width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
			FPS:    vc.Get(gocv.VideoCaptureFPS),
		},
		open: true,
	}

	logging.Component("camera").WithFields(logging.Fields{
		"device": path,
		"width":  d.info.Width,
		"height": d.info.Height,
		"fps":    d.info.FPS,
	}).Info("Camera opened")
	return d, nil
}

// Capture reads the next frame.
func (d *Device) Capture() (Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return Frame{}, ErrCameraNotOpen
	}
	if ok := d.cap.Read(&d.mat); !ok || d.mat.Empty() {
		return Frame{}, ErrNoFrame
	}

	img, err := d.mat.ToImage()
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}

	return Frame{
		Image:     img,
		Width:     d.mat.Cols(),
		Height:    d.mat.Rows(),
		Timestamp: time.Now(),
	}, nil
}

// Info returns the negotiated device parameters.
func (d *Device) Info() DeviceInfo {
	return d.info
}

// Close releases the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return nil
	}
	d.open = false
	_ = d.mat.Close()
	return d.cap.Close()
}
