package device

import (
	"context"
	"time"
)

// DefaultActor is recorded in audit fields when the context names no actor.
const DefaultActor = "system"

type actorKey struct{}

// WithActor returns a context that attributes writes to name.
func WithActor(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, actorKey{}, name)
}

// ActorFromContext returns the actor stored by WithActor, or DefaultActor.
func ActorFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(actorKey{}).(string); ok && name != "" {
		return name
	}
	return DefaultActor
}

// Common create and update rules. Every backend builds entities through
// these so the stored shape does not depend on the store.

func setCreatedMetadata(info *EntityInfo, actor string, now time.Time) {
	info.CreatedDate = now
	info.CreatedBy = actor
	info.Deleted = false
}

func setUpdatedMetadata(info *EntityInfo, actor string, now time.Time) {
	info.UpdatedDate = &now
	info.UpdatedBy = actor
}

func specificationCreateLogic(req *CreateRequest, token, actor string, now time.Time) *Specification {
	spec := &Specification{
		Token:    token,
		Name:     req.Name,
		AssetID:  req.AssetID,
		Metadata: copyMetadata(req.Metadata),
	}
	setCreatedMetadata(&spec.EntityInfo, actor, now)
	return spec
}

func specificationUpdateLogic(req *CreateRequest, spec *Specification, actor string, now time.Time) {
	if req.Name != "" {
		spec.Name = req.Name
	}
	if req.AssetID != "" {
		spec.AssetID = req.AssetID
	}
	if req.Metadata != nil {
		spec.Metadata = copyMetadata(req.Metadata)
	}
	setUpdatedMetadata(&spec.EntityInfo, actor, now)
}

func commandCreateLogic(req *CommandCreateRequest, specToken, token, actor string, now time.Time) *DeviceCommand {
	cmd := &DeviceCommand{
		Token:              token,
		SpecificationToken: specToken,
		Name:               req.Name,
		Namespace:          req.Namespace,
		Description:        req.Description,
		Metadata:           copyMetadata(req.Metadata),
	}
	if req.Parameters != nil {
		cmd.Parameters = make([]CommandParameter, len(req.Parameters))
		copy(cmd.Parameters, req.Parameters)
	}
	setCreatedMetadata(&cmd.EntityInfo, actor, now)
	return cmd
}
