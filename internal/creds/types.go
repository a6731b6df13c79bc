package creds

import (
	"github.com/vmihailenco/msgpack/v5"
)

// DBCredential is the stored form of the token pair. A single record lives
// under a fixed key: there is exactly one session per device.
type DBCredential struct {
	AccessToken  string `msgpack:"accessToken"`
	RefreshToken string `msgpack:"refreshToken"`
	UpdatedAt    int64  `msgpack:"updatedAt"`
}

func (c *DBCredential) Key() []byte {
	return []byte("session")
}

func (c *DBCredential) MarshalBinary() (data []byte, err error) {
	type alias DBCredential
	return msgpack.Marshal((*alias)(c))
}

func (c *DBCredential) UnmarshalBinary(data []byte) error {
	type alias DBCredential
	return msgpack.Unmarshal(data, (*alias)(c))
}
