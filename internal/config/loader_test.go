package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("NEXUS_TEST_HOST", "db.internal")

	assert.Equal(t, "host: db.internal", expandEnv("host: ${NEXUS_TEST_HOST}"))
	// 已设置的变量优先于默认值
	assert.Equal(t, "host: db.internal", expandEnv("host: ${NEXUS_TEST_HOST:localhost}"))
	// 未设置但有默认值
	assert.Equal(t, "port: 5432", expandEnv("port: ${NEXUS_TEST_MISSING:5432}"))
	// 默认值可以为空
	assert.Equal(t, "password: ", expandEnv("password: ${NEXUS_TEST_MISSING:}"))
	// 未设置且无默认值时原样保留，便于发现漏配
	assert.Equal(t, "key: ${NEXUS_TEST_MISSING}", expandEnv("key: ${NEXUS_TEST_MISSING}"))
	// 同一行多个占位符
	assert.Equal(t, "db.internal:5432", expandEnv("${NEXUS_TEST_HOST}:${NEXUS_TEST_MISSING:5432}"))
}
