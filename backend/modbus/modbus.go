// Package modbus implements the Modbus TCP value backend on
// goburrow/modbus. Sources select registers by address and quantity;
// function picks holding or input register access and dataType governs how
// register words map to the element's value string.
package modbus

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goburrow/modbus"
	"go.uber.org/zap"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
)

const (
	defaultTimeout = 10 * time.Second
	defaultSlaveID = 1
	defaultPort    = "502"
)

// Config tunes the Modbus backend.
type Config struct {
	// Timeout bounds each request. Zero means 10 seconds.
	Timeout time.Duration

	// SlaveID is the Modbus unit identifier. Zero means 1.
	SlaveID byte
}

// Backend reads and writes element values as Modbus registers.
type Backend struct {
	timeout time.Duration
	slaveID byte
	logger  *zap.SugaredLogger
}

var _ backend.ValueBackend = (*Backend)(nil)

// New creates a Modbus backend.
func New(cfg Config) *Backend {
	b := &Backend{
		timeout: cfg.Timeout,
		slaveID: cfg.SlaveID,
		logger:  logger.ComponentLogger("backend.modbus"),
	}
	if b.timeout <= 0 {
		b.timeout = defaultTimeout
	}
	if b.slaveID == 0 {
		b.slaveID = defaultSlaveID
	}
	return b
}

// UpdateValue reads the source's registers and applies the decoded value.
func (b *Backend) UpdateValue(ctx context.Context, updated model.Referable, source backend.Source) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "modbus read: %v", err)
	}
	spec, err := parseSpec(source)
	if err != nil {
		return err
	}
	addr, err := deviceAddr(source[backend.KeyBase])
	if err != nil {
		return err
	}

	handler := modbus.NewTCPClientHandler(addr)
	handler.Timeout = b.timeout
	handler.SlaveId = b.slaveID
	if err := handler.Connect(); err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "connecting to %s: %v", addr, err)
	}
	defer handler.Close()

	client := modbus.NewClient(handler)
	var raw []byte
	if spec.input {
		raw, err = client.ReadInputRegisters(spec.address, spec.quantity)
	} else {
		raw, err = client.ReadHoldingRegisters(spec.address, spec.quantity)
	}
	if err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable,
			"reading %d registers at %d from %s: %v", spec.quantity, spec.address, addr, err)
	}

	value, err := decodeRegisters(raw, spec.dataType)
	if err != nil {
		return err
	}
	b.logger.Debugw("Registers read",
		logger.FieldAddress, spec.address,
		logger.FieldHost, addr,
		logger.FieldIDShort, updated.IDShort(),
	)
	return model.SetValueString(updated, value)
}

// CommitValue encodes the element's value into register words and writes
// them. Input registers are read-only by definition.
func (b *Backend) CommitValue(ctx context.Context, committed model.Referable, source backend.Source) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "modbus write: %v", err)
	}
	spec, err := parseSpec(source)
	if err != nil {
		return err
	}
	if spec.input {
		return errors.NewConstraint("input registers are read-only")
	}
	addr, err := deviceAddr(source[backend.KeyBase])
	if err != nil {
		return err
	}

	value, err := model.ValueString(committed)
	if err != nil {
		return err
	}
	payload, err := encodeRegisters(value, spec.dataType)
	if err != nil {
		return err
	}

	handler := modbus.NewTCPClientHandler(addr)
	handler.Timeout = b.timeout
	handler.SlaveId = b.slaveID
	if err := handler.Connect(); err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "connecting to %s: %v", addr, err)
	}
	defer handler.Close()

	client := modbus.NewClient(handler)
	if _, err := client.WriteMultipleRegisters(spec.address, spec.quantity, payload); err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable,
			"writing %d registers at %d to %s: %v", spec.quantity, spec.address, addr, err)
	}

	b.logger.Debugw("Registers written",
		logger.FieldAddress, spec.address,
		logger.FieldHost, addr,
		logger.FieldIDShort, committed.IDShort(),
	)
	return nil
}

// registerSpec is a parsed source: a zero-based register offset, the word
// count, the register space, and the value encoding.
type registerSpec struct {
	address  uint16
	quantity uint16
	input    bool
	dataType string
}

// registerWidth returns the word count a data type occupies.
func registerWidth(dataType string) (uint16, error) {
	switch dataType {
	case "uint16", "int16":
		return 1, nil
	case "uint32", "float32":
		return 2, nil
	default:
		return 0, errors.NewConstraint("unsupported modbus data type %q", dataType)
	}
}

// parseSpec validates the source and normalizes conventional register
// numbers (4xxxx holding, 3xxxx input) to wire offsets.
func parseSpec(source backend.Source) (registerSpec, error) {
	var spec registerSpec

	switch source[backend.KeyFunction] {
	case "", "holding":
	case "input":
		spec.input = true
	default:
		return spec, errors.NewConstraint("unsupported modbus function %q", source[backend.KeyFunction])
	}

	spec.dataType = source[backend.KeyDataType]
	if spec.dataType == "" {
		spec.dataType = "uint16"
	}
	width, err := registerWidth(spec.dataType)
	if err != nil {
		return spec, err
	}

	raw := source[backend.KeyAddress]
	if raw == "" {
		return spec, errors.NewConstraint("modbus source carries no address")
	}
	address, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return spec, errors.Wrapf(err, "modbus address %q", raw)
	}
	switch {
	case !spec.input && address >= 40001 && address <= 49999:
		address -= 40001
	case spec.input && address >= 30001 && address <= 39999:
		address -= 30001
	}
	if address > 0xFFFF {
		return spec, errors.NewConstraint("modbus address %q out of range", raw)
	}
	spec.address = uint16(address)

	spec.quantity = width
	if q := source[backend.KeyQuantity]; q != "" {
		quantity, err := strconv.ParseUint(q, 10, 16)
		if err != nil {
			return spec, errors.Wrapf(err, "modbus quantity %q", q)
		}
		if uint16(quantity) != width {
			return spec, errors.NewConstraint(
				"quantity %d does not match %s width %d", quantity, spec.dataType, width)
		}
		spec.quantity = uint16(quantity)
	}
	return spec, nil
}

// decodeRegisters turns big-endian register words into a value string.
func decodeRegisters(raw []byte, dataType string) (string, error) {
	width, err := registerWidth(dataType)
	if err != nil {
		return "", err
	}
	if len(raw) < int(width)*2 {
		return "", errors.Wrapf(errors.ErrBackendUnavailable,
			"short register read: %d bytes for %s", len(raw), dataType)
	}

	switch dataType {
	case "uint16":
		return strconv.FormatUint(uint64(binary.BigEndian.Uint16(raw)), 10), nil
	case "int16":
		return strconv.FormatInt(int64(int16(binary.BigEndian.Uint16(raw))), 10), nil
	case "uint32":
		return strconv.FormatUint(uint64(binary.BigEndian.Uint32(raw)), 10), nil
	default: // float32, registerWidth vetted the type
		f := math.Float32frombits(binary.BigEndian.Uint32(raw))
		return strconv.FormatFloat(float64(f), 'g', -1, 32), nil
	}
}

// encodeRegisters turns a value string into big-endian register words.
func encodeRegisters(value, dataType string) ([]byte, error) {
	switch dataType {
	case "uint16":
		v, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "value %q as uint16", value)
		}
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, uint16(v))
		return out, nil

	case "int16":
		v, err := strconv.ParseInt(value, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "value %q as int16", value)
		}
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, uint16(int16(v)))
		return out, nil

	case "uint32":
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "value %q as uint32", value)
		}
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(v))
		return out, nil

	case "float32":
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "value %q as float32", value)
		}
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, math.Float32bits(float32(v)))
		return out, nil

	default:
		return nil, errors.NewConstraint("unsupported modbus data type %q", dataType)
	}
}

// deviceAddr strips the scheme from the configured base and defaults the
// port, leaving host:port for the TCP handler.
func deviceAddr(base string) (string, error) {
	if base == "" {
		return "", errors.NewConstraint("modbus source carries no base")
	}
	addr := base
	for _, scheme := range []string{"modbus://", "modbus+tcp://", "tcp://"} {
		if strings.HasPrefix(addr, scheme) {
			addr = strings.TrimPrefix(addr, scheme)
			break
		}
	}
	addr = strings.TrimSuffix(addr, "/")
	if addr == "" {
		return "", errors.NewConstraint("modbus base %q has no host", base)
	}
	if !strings.Contains(addr, ":") {
		addr += ":" + defaultPort
	}
	return addr, nil
}
