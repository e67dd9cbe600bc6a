// Package mbtcp mirrors the RTU holding registers on Modbus TCP.
package mbtcp

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/simonvetter/modbus"

	"github.com/yvesf/mercury-gw/pkg/rtu"
)

// broadcastUnitID is accepted besides the configured unit id, TCP gateways
// commonly address the device itself with it.
const broadcastUnitID = 0xff

// Handler serves the register map to simonvetter/modbus. Everything but
// reading holding registers is answered with illegal function.
type Handler struct {
	UnitID    func() byte
	Registers rtu.RegisterMap

	log zerolog.Logger
}

func NewHandler(unitID func() byte, registers rtu.RegisterMap) *Handler {
	return &Handler{
		UnitID:    unitID,
		Registers: registers,
		log:       log.With().Str("component", "modbus-tcp").Logger(),
	}
}

func (h *Handler) HandleCoils(*modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *Handler) HandleDiscreteInputs(*modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *Handler) HandleInputRegisters(*modbus.InputRegistersRequest) ([]uint16, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *Handler) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.UnitId != h.UnitID() && req.UnitId != broadcastUnitID {
		return nil, modbus.ErrBadUnitId
	}
	if req.IsWrite {
		return nil, modbus.ErrIllegalFunction
	}
	values, err := h.Registers.Read(req.Addr, req.Quantity)
	if errors.Is(err, rtu.ErrIllegalDataAddress) {
		h.log.Debug().Err(err).Uint8("unit", req.UnitId).Msg("read rejected")
		return nil, modbus.ErrIllegalDataAddress
	}
	return values, err
}

// Server owns the listening socket.
type Server struct {
	server *modbus.ModbusServer
	url    string
}

// NewServer listens on addr (host:port) once started.
func NewServer(addr string, maxClients uint, handler *Handler) (*Server, error) {
	url := "tcp://" + addr
	s, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        url,
		Timeout:    30 * time.Second,
		MaxClients: maxClients,
	}, handler)
	if err != nil {
		return nil, fmt.Errorf("create modbus tcp server: %w", err)
	}
	return &Server{server: s, url: url}, nil
}

func (s *Server) Start() error {
	if err := s.server.Start(); err != nil {
		return fmt.Errorf("start modbus tcp server on %s: %w", s.url, err)
	}
	log.Info().Str("url", s.url).Msg("modbus tcp server listening")
	return nil
}

func (s *Server) Stop() error {
	return s.server.Stop()
}
