package bpcpool

// Option configures a Pool at construction time, in the same functional-options
// style the teacher uses for Superblock configuration.
type Option func(p *Pool) error

// WithCacheSize overrides the directory-listing LRU size used by the FS
// adapter (default 2048, per the mount interface's design note).
func WithCacheSize(n int) Option {
	return func(p *Pool) error {
		p.cacheSize = n
		return nil
	}
}

// WithCollisionID pins the pool locator to a specific collision id, written
// as a hex prefix before the digest, instead of the bare digest filename.
func WithCollisionID(id uint64) Option {
	return func(p *Pool) error {
		p.collisionID = &id
		return nil
	}
}
