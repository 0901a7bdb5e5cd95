package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/lib/pq"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeExclusionViolation   = "23P01"
	codeInvalidTextRepr      = "22P02"
	codeAdminShutdown        = "57P01"
	codeTooManyConnections   = "53300"
)

// classify は lib/pq のエラーをドメインのエラーに変換します
// リトライ可能なエラーは model.ErrStoreTransient、排他制約違反は model.ErrIntervalConflict でラップします
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrStoreTransient) || errors.Is(err, model.ErrIntervalConflict) {
		return err
	}
	if isExclusionViolation(err) {
		return fmt.Errorf("%w: %w", model.ErrIntervalConflict, err)
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %w", model.ErrStoreTransient, err)
	}
	return err
}

// IsTransient はリトライで回復する可能性のあるエラーかどうかを返します
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, model.ErrStoreTransient) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeAdminShutdown, codeTooManyConnections:
			return true
		}
		// Class 08: connection exception
		return pqErr.Code.Class() == "08"
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isExclusionViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeExclusionViolation
}

func isInvalidUUID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeInvalidTextRepr
}
