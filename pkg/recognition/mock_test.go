package recognition

import (
	"image"

	"github.com/Kagami/go-face"

	"github.com/MrCodeEU/facepunch/pkg/imaging"
)

// MockFaceEngine implements FaceEngine for testing.
type MockFaceEngine struct {
	RecognizeFunc func(data []byte) ([]face.Face, error)
	CloseFunc     func()
}

func (m *MockFaceEngine) Recognize(data []byte) ([]face.Face, error) {
	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(data)
	}
	return nil, nil
}

func (m *MockFaceEngine) Close() {
	if m.CloseFunc != nil {
		m.CloseFunc()
	}
}

func decodeForTest(data []byte) (*image.Gray, error) {
	return imaging.DecodeGray(data)
}
