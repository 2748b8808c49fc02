package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-specstore/internal/search"
	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn"
)

// AllocateNextCommandID decrements the command counter on the
// specification's primary row and returns the new value. Ids are strictly
// decreasing, so command rows sort newest first.
//
// The counter is not checked for an existing specification: allocating
// against an unknown id creates a counter-only row. CreateCommand asserts
// the specification before allocating.
func (r *StoreRepository) AllocateNextCommandID(ctx context.Context, specID uint64) (id int64, err error) {
	defer r.observe(OpAllocateCommand, time.Now(), &err)

	primary := PrimaryRowKey(specID)
	err = r.withTable(ctx, func(t widecolumn.Table) error {
		id, err = t.Increment(ctx, primary, colCommandCounter, -1)
		if err != nil {
			return r.storageErr("allocating command id", primary, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateCommand stores a new command under the specification.
func (r *StoreRepository) CreateCommand(ctx context.Context, specToken string, req *CommandCreateRequest) (cmd *DeviceCommand, err error) {
	defer r.observe(OpCreateCommand, time.Now(), &err)

	if err := ValidateCommandRequest(req); err != nil {
		return nil, err
	}
	_, specID, err := r.assert(ctx, specToken)
	if err != nil {
		return nil, err
	}

	token := req.Token
	if token == "" {
		token = uuid.NewString()
	}
	cmdID, err := r.AllocateNextCommandID(ctx, specID)
	if err != nil {
		return nil, err
	}

	cmd = commandCreateLogic(req, specToken, token, ActorFromContext(ctx), r.now())
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}

	row := CommandRowKey(specID, cmdID)
	err = r.withTable(ctx, func(t widecolumn.Table) error {
		if err := t.Put(ctx, row, widecolumn.Cell{Qualifier: colJSON, Value: payload}); err != nil {
			return r.storageErr("writing command", row, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("device command created", "specification", specToken, "command", token, "id", cmdID)
	return cmd, nil
}

// ListCommands returns the specification's commands, newest first.
func (r *StoreRepository) ListCommands(ctx context.Context, specToken string, criteria search.Criteria) (out search.Results[*DeviceCommand], err error) {
	defer r.observe(OpListCommands, time.Now(), &err)

	_, specID, err := r.assert(ctx, specToken)
	if err != nil {
		return search.Results[*DeviceCommand]{}, err
	}

	pager := search.NewPager[[]byte](criteria)
	start, stop := CommandRowPrefix(specID), EndRowPrefix(specID)
	err = r.withTable(ctx, func(t widecolumn.Table) error {
		return widecolumn.WithScanner(ctx, t, start, stop, func(s widecolumn.Scanner) error {
			for s.Next() {
				res := s.Result()
				if !isCommandRow(res.Row) {
					continue
				}
				if payload := res.Value(colJSON); payload != nil {
					pager.Process(payload)
				}
			}
			if err := s.Err(); err != nil {
				return r.storageErr("scanning commands", start, err)
			}
			return nil
		})
	})
	if err != nil {
		return search.Results[*DeviceCommand]{}, err
	}

	return search.Map(pager, decodeCommand)
}

func decodeCommand(payload []byte) (*DeviceCommand, error) {
	var cmd DeviceCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("%w: decoding command: %v", ErrIntegrity, err)
	}
	return &cmd, nil
}
