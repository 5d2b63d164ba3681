package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/GriffinCanCode/remplhost/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProber struct {
	url string
	err error
}

func (s *stubProber) Probe(_ context.Context, url string) (*remote.ProbeResult, error) {
	s.url = url
	if s.err != nil {
		return nil, s.err
	}
	return &remote.ProbeResult{URL: url, Status: 200}, nil
}

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "default", input: DefaultServerURL, want: DefaultServerURL},
		{name: "trimmed", input: "  https://example.com/rempl  ", want: "https://example.com/rempl"},
		{name: "empty", input: "   ", wantErr: true},
		{name: "relative", input: "/server/client", wantErr: true},
		{name: "bad scheme", input: "ftp://example.com", wantErr: true},
		{name: "no host", input: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateServerURL(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServerDialogLifecycle(t *testing.T) {
	d := NewServerDialog("", nil)
	assert.False(t, d.IsVisible())
	assert.Equal(t, DefaultServerURL, d.Text())

	d.Show()
	d.SetText("http://example.com")
	assert.True(t, d.IsVisible())
	assert.Equal(t, "http://example.com", d.Text())

	d.Reset()
	d.Hide()
	assert.False(t, d.IsVisible())
	assert.Equal(t, DefaultServerURL, d.Text())
}

func TestServerDialogProbe(t *testing.T) {
	prober := &stubProber{}
	d := NewServerDialog("http://localhost:9000/client", prober)

	result, err := d.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, "http://localhost:9000/client", prober.url)

	prober.err = errors.New("refused")
	_, err = d.Probe(context.Background())
	assert.Error(t, err)

	d.SetText("nope")
	_, err = d.Probe(context.Background())
	assert.ErrorIs(t, err, ErrInvalidURL)
}
