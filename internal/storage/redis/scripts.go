package redis

const (
	// putValueScript atomically writes a value and records it in the key index
	putValueScript = `
local value_key = KEYS[1]     -- sitetime:kv:{key}
local index_set = KEYS[2]     -- sitetime:index

local key = ARGV[1]
local value = ARGV[2]

redis.call('SET', value_key, value)
redis.call('SADD', index_set, key)

return 'OK'
`

	// deleteValueScript atomically removes a value and its index entry
	deleteValueScript = `
local value_key = KEYS[1]     -- sitetime:kv:{key}
local index_set = KEYS[2]     -- sitetime:index

local key = ARGV[1]

redis.call('DEL', value_key)
redis.call('SREM', index_set, key)

return 'OK'
`
)
