package instrument

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/sweeper/internal/monitoring"
)

// Generator model names accepted by NewSignalGenerator.
const (
	ModelHP8673B = "HP8673B"
)

// ValidGeneratorModels lists the generator models with a driver.
var ValidGeneratorModels = []string{ModelHP8673B}

// NewSpectrumAnalyzer identifies the instrument on conn with the ID? query and
// returns the matching driver. Instruments whose identification does not
// match a known analyzer yield ErrUnsupportedDevice; the caller still owns
// conn in that case.
func NewSpectrumAnalyzer(conn Conn) (Analyzer, error) {
	idn, err := conn.Query("ID?")
	if err != nil {
		return nil, &DeviceError{Device: "analyzer", Op: "ID?", Err: err}
	}
	idn = strings.TrimSpace(idn)
	monitoring.Logf("[instrument] analyzer identified as %q", idn)

	switch {
	case strings.Contains(idn, "8563A"):
		return NewHP8563A(conn), nil
	case strings.Contains(idn, "8593EM"):
		return NewHP8593EM(conn), nil
	default:
		return nil, fmt.Errorf("analyzer with ID %q: %w", idn, ErrUnsupportedDevice)
	}
}

// NewSignalGenerator returns the driver for a generator model name. Model
// names are matched case-insensitively.
func NewSignalGenerator(model string, conn Conn) (Generator, error) {
	switch strings.ToUpper(strings.TrimSpace(model)) {
	case ModelHP8673B:
		return NewHP8673B(conn), nil
	default:
		return nil, fmt.Errorf("generator model %q: %w", model, ErrUnsupportedDevice)
	}
}

// Bench is a connected analyzer and generator pair. The sweep host takes
// exclusive use of both while a session runs.
type Bench struct {
	Analyzer    Analyzer
	Generator   Generator
	AnalyzerID  string
	GeneratorID string
}

// Connect builds drivers for both instruments and reads their
// identification. On failure both connections are closed.
func Connect(saConn, sgConn Conn, generatorModel string) (*Bench, error) {
	sa, err := NewSpectrumAnalyzer(saConn)
	if err != nil {
		return nil, errors.Join(err, saConn.Close(), sgConn.Close())
	}
	sg, err := NewSignalGenerator(generatorModel, sgConn)
	if err != nil {
		return nil, errors.Join(err, sa.Close(), sgConn.Close())
	}

	b := &Bench{Analyzer: sa, Generator: sg}
	if b.AnalyzerID, err = sa.ID(); err != nil {
		return nil, errors.Join(err, sa.Close(), sg.Close())
	}
	if b.GeneratorID, err = sg.ID(); err != nil {
		return nil, errors.Join(err, sa.Close(), sg.Close())
	}
	monitoring.Logf("[instrument] connected to SA: %s and SG: %s", b.AnalyzerID, b.GeneratorID)
	return b, nil
}

// Disconnect switches the generator RF output off and closes both
// instruments. Every step is attempted; the errors are joined.
func (b *Bench) Disconnect() error {
	monitoring.Logf("[instrument] disconnecting from devices")
	err := errors.Join(
		b.Generator.EnableRF(false),
		b.Analyzer.Close(),
		b.Generator.Close(),
	)
	if err != nil {
		monitoring.Logf("[instrument] error closing connections: %v", err)
		return err
	}
	monitoring.Logf("[instrument] connections closed")
	return nil
}
