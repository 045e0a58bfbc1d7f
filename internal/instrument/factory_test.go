package instrument

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpectrumAnalyzerIdentifies(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want interface{}
	}{
		{"8563A", "HP8563A", &HP8563A{}},
		{"8563A with revision", "HP8563A,REV 1.2", &HP8563A{}},
		{"8593EM", "HP8593EM", &HP8593EM{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sa, err := NewSpectrumAnalyzer(newFakeConn(map[string]string{"ID?": tt.id}))
			require.NoError(t, err)
			assert.IsType(t, tt.want, sa)
		})
	}
}

func TestNewSpectrumAnalyzerUnsupported(t *testing.T) {
	_, err := NewSpectrumAnalyzer(newFakeConn(map[string]string{"ID?": "HP8566B"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedDevice)
}

func TestNewSpectrumAnalyzerQueryFails(t *testing.T) {
	conn := newFakeConn(nil)
	conn.queryErr = errors.New("no listener")
	_, err := NewSpectrumAnalyzer(conn)
	require.Error(t, err)
	assert.True(t, IsDeviceError(err))
}

func TestNewSignalGenerator(t *testing.T) {
	sg, err := NewSignalGenerator("hp8673b", newFakeConn(nil))
	require.NoError(t, err)
	assert.IsType(t, &HP8673B{}, sg)

	_, err = NewSignalGenerator("E4438C", newFakeConn(nil))
	assert.ErrorIs(t, err, ErrUnsupportedDevice)
}

func TestConnectAndDisconnect(t *testing.T) {
	saConn := newFakeConn(map[string]string{"ID?": "HP8563A"})
	sgConn := newFakeConn(nil)

	bench, err := Connect(saConn, sgConn, ModelHP8673B)
	require.NoError(t, err)
	assert.Equal(t, "HP8563A", bench.AnalyzerID)
	assert.Equal(t, "HP8673B", bench.GeneratorID)

	require.NoError(t, bench.Disconnect())
	assert.Equal(t, []string{"RF0"}, sgConn.writes)
	assert.True(t, saConn.closed)
	assert.True(t, sgConn.closed)
}

func TestConnectClosesOnFailure(t *testing.T) {
	saConn := newFakeConn(map[string]string{"ID?": "UNKNOWN"})
	sgConn := newFakeConn(nil)

	_, err := Connect(saConn, sgConn, ModelHP8673B)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedDevice)
	assert.True(t, saConn.closed)
	assert.True(t, sgConn.closed)
}

func TestConnectUnknownGeneratorModel(t *testing.T) {
	saConn := newFakeConn(map[string]string{"ID?": "HP8563A"})
	sgConn := newFakeConn(nil)

	_, err := Connect(saConn, sgConn, "nope")
	assert.ErrorIs(t, err, ErrUnsupportedDevice)
	assert.True(t, saConn.closed)
	assert.True(t, sgConn.closed)
}
