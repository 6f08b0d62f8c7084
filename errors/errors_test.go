package errors

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestCast(t *testing.T) {
	type args struct {
		err error
	}
	tests := []struct {
		name   string
		args   args
		want   Error
		wantOK bool
	}{
		{
			name: "with rich error",
			args: args{
				err: Error{
					Code:    ErrBadRequest,
					Err:     nil,
					Message: "this was a bad request",
				},
			},
			want: Error{
				Code:    ErrBadRequest,
				Err:     nil,
				Message: "this was a bad request",
			},
			wantOK: true,
		},
		{
			name: "with rich error reference",
			args: args{
				err: &Error{
					Code:    ErrNotFound,
					Kind:    KindElementNotFound,
					Message: "not here",
				},
			},
			want: Error{
				Code:    ErrNotFound,
				Kind:    KindElementNotFound,
				Message: "not here",
			},
			wantOK: true,
		},
		{
			name: "with rich error wrapped by fmt",
			args: args{
				err: fmt.Errorf("outer: %w", Error{Code: ErrConflict, Kind: KindDuplicateRecord, Message: "dup"}),
			},
			want: Error{
				Code:    ErrConflict,
				Kind:    KindDuplicateRecord,
				Message: "dup",
			},
			wantOK: true,
		},
		{
			name: "with nil error",
			args: args{
				err: nil,
			},
			want: Error{
				Code:    ErrUnexpected,
				Err:     nil,
				Message: "unknown operation",
				Details: make(Details),
			},
			wantOK: false,
		},
		{
			name: "with simple error",
			args: args{
				err: errors.New("i am an error"),
			},
			want: Error{
				Code:    ErrUnexpected,
				Err:     errors.New("i am an error"),
				Message: "unknown operation",
				Details: make(Details),
			},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := Cast(tt.args.err); !reflect.DeepEqual(got, tt.want) || ok != tt.wantOK {
				t.Errorf("Cast() = %v, %v, want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  Error
		want string
	}{
		{
			name: "with original error",
			err: Error{
				Code:    ErrBadRequest,
				Err:     errors.New("hello world"),
				Message: "unknown operation",
			},
			want: "unknown operation: hello world",
		},
		{
			name: "without original error",
			err: Error{
				Code:    ErrBadRequest,
				Message: "known operation",
			},
			want: "known operation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	type args struct {
		message string
		err     error
	}
	tests := []struct {
		name string
		args args
		want error
	}{
		{
			name: "with rich error",
			args: args{
				message: "i am the wrapper",
				err: Error{
					Code:    ErrNotFound,
					Err:     errors.New("i am the error"),
					Message: "i am the original operation",
				},
			},
			want: errors.New("i am the wrapper: i am the original operation: i am the error"),
		},
		{
			name: "with simple error",
			args: args{
				message: "i am the wrapper",
				err:     errors.New("i am the error"),
			},
			want: errors.New("i am the wrapper: i am the error"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Wrap(tt.args.err, tt.args.message, nil); err == nil || err.Error() != tt.want.Error() {
				t.Errorf("Wrap() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWrapKeepsKindAndDetails(t *testing.T) {
	err := Wrap(Error{
		Code:    ErrResourceExhausted,
		Kind:    KindAccountsNotEnough,
		Message: "reserve",
		Details: Details{"requested": 4},
	}, "ready", Details{"requested": 5, "slot": "a"})
	e, ok := Cast(err)
	if !ok {
		t.Fatalf("Cast() should succeed")
	}
	if e.Kind != KindAccountsNotEnough || e.Code != ErrResourceExhausted {
		t.Errorf("Wrap() lost code or kind: %v, %v", e.Code, e.Kind)
	}
	want := Details{"requested": 5, "_requested": 4, "slot": "a"}
	if !reflect.DeepEqual(e.Details, want) {
		t.Errorf("Wrap() details = %v, want %v", e.Details, want)
	}
}

func TestIs(t *testing.T) {
	if !Is(Wrap(NewElementNotFoundError("slot", nil), "lookup", nil), KindElementNotFound) {
		t.Errorf("Is() should detect wrapped kind")
	}
	if Is(errors.New("plain"), KindElementNotFound) {
		t.Errorf("Is() should not match plain errors")
	}
}

func TestBlameUser(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "not found", err: Error{Code: ErrNotFound}, want: true},
		{name: "bad request", err: Error{Code: ErrBadRequest}, want: true},
		{name: "protocol violation", err: Error{Code: ErrProtocolViolation}, want: true},
		{name: "conflict", err: Error{Code: ErrConflict}, want: true},
		{name: "internal", err: Error{Code: ErrInternal}, want: false},
		{name: "communication", err: Error{Code: ErrCommunication}, want: false},
		{name: "unexpected", err: errors.New("unknown error"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BlameUser(tt.err); got != tt.want {
				t.Errorf("BlameUser() = %v, want %v", got, tt.want)
			}
		})
	}
}
