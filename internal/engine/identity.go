package engine

import (
	"context"
	"fmt"

	"tfs-autotasks/internal/api"
	"tfs-autotasks/internal/errs"
	"tfs-autotasks/internal/synth"
)

// IdentityAPI is the slice of the client used to resolve the current user for
// the @me token.
type IdentityAPI interface {
	ProfileMe(ctx context.Context) (api.Profile, error)
	WhoamiFromHeaders(ctx context.Context) (api.HeaderIdentity, error)
	ResolveIdentityByID(ctx context.Context, id string) (*api.Identity, error)
}

// ResolveCurrentUser resolves the authenticated user's assignable identity.
// The profile endpoint is preferred; on-prem servers without it fall back to
// the X-Vss-Userdata response header, optionally upgraded through the
// identities endpoint.
func ResolveCurrentUser(ctx context.Context, ids IdentityAPI) (synth.Identity, error) {
	profile, err := ids.ProfileMe(ctx)
	if err == nil {
		if value := profileDisplay(profile); value != "" {
			return value, nil
		}
	}
	header, headerErr := ids.WhoamiFromHeaders(ctx)
	if headerErr != nil {
		return nil, headerErr
	}
	if header.ID != "" {
		if resolved, resolveErr := ids.ResolveIdentityByID(ctx, header.ID); resolveErr == nil && resolved != nil {
			return identityRefValue(*resolved, header.UniqueName), nil
		}
		return map[string]interface{}{
			"id":         header.ID,
			"uniqueName": header.UniqueName,
		}, nil
	}
	if header.UniqueName != "" {
		return header.UniqueName, nil
	}
	return nil, errs.New(errs.CodeWhoamiUnavailable, "identity headers carried no usable value", header.Raw)
}

func profileDisplay(profile api.Profile) string {
	switch {
	case profile.EmailAddress != "" && profile.DisplayName != "":
		return fmt.Sprintf("%s<%s>", profile.DisplayName, profile.EmailAddress)
	case profile.EmailAddress != "":
		return profile.EmailAddress
	default:
		return profile.DisplayName
	}
}

func identityRefValue(identity api.Identity, fallbackUnique string) map[string]interface{} {
	ref := map[string]interface{}{
		"id": identity.ID,
	}
	if identity.ProviderDisplayName != "" {
		ref["displayName"] = identity.ProviderDisplayName
	}
	if identity.SubjectDescriptor != "" {
		ref["descriptor"] = identity.SubjectDescriptor
	} else if identity.Descriptor != "" {
		ref["descriptor"] = identity.Descriptor
	}
	if unique := identityUniqueName(identity, fallbackUnique); unique != "" {
		ref["uniqueName"] = unique
	}
	return ref
}

func identityUniqueName(identity api.Identity, fallback string) string {
	domain := identityProperty(identity, "Domain")
	account := identityProperty(identity, "Account")
	if domain != "" && account != "" {
		return domain + `\\` + account
	}
	if value := identityProperty(identity, "Mail"); value != "" {
		return value
	}
	if value := identityProperty(identity, "Account"); value != "" {
		return value
	}
	if value := identityProperty(identity, "UniqueName"); value != "" {
		return value
	}
	return fallback
}

func identityProperty(identity api.Identity, key string) string {
	if identity.Properties == nil {
		return ""
	}
	raw, ok := identity.Properties[key]
	if !ok {
		return ""
	}
	if prop, ok := raw.(map[string]interface{}); ok {
		if val, ok := prop["$value"].(string); ok {
			return val
		}
	}
	if val, ok := raw.(string); ok {
		return val
	}
	return ""
}
