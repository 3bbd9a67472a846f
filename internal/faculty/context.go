package faculty

import "context"

type key struct{}

var profileKey key

func NewContext(ctx context.Context, profile *Profile) context.Context {
	return context.WithValue(ctx, profileKey, profile)
}

func FromContext(ctx context.Context) (*Profile, bool) {
	p, ok := ctx.Value(profileKey).(*Profile)
	return p, ok
}
