package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"sync"
	"testing"

	minioclient "photo-generator/internal/storage/minio"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

// memoryBlobs is an in-memory blob store keyed by URL.
type memoryBlobs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	folders  []string
	failOn   string
	download error
	seq      int
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{objects: map[string][]byte{}}
}

func (m *memoryBlobs) Upload(_ context.Context, data []byte, folder string) (minioclient.UploadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && folder == m.failOn {
		return minioclient.UploadResult{}, errors.New("store unavailable")
	}
	m.seq++
	key := fmt.Sprintf("decrude/%s/%d.jpg", folder, m.seq)
	u := "https://blobs.example.com/bucket/" + key
	m.objects[u] = data
	m.folders = append(m.folders, folder)
	return minioclient.UploadResult{URL: u, ObjectID: key}, nil
}

func (m *memoryBlobs) DownloadAsBytes(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.download != nil {
		return nil, m.download
	}
	data, ok := m.objects[url]
	if !ok {
		return nil, fmt.Errorf("object %s not found", url)
	}
	return data, nil
}

func (m *memoryBlobs) put(url string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[url] = data
}

func (m *memoryBlobs) uploadedTo(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.folders {
		if strings.HasPrefix(f, prefix) {
			n++
		}
	}
	return n
}
