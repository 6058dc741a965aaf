package ldb

import "github.com/starcoinorg/smolstc/infrastructure/logger"

var log = logger.RegisterSubSystem("LVDB")
