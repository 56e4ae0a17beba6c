package repository

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// NodeID is the snowflake node of this process.
const NodeID = 1

func NewNode() (*snowflake.Node, error) {
	return snowflake.NewNode(NodeID)
}

var Module = fx.Module("repository",
	fx.Provide(NewNode),
)
