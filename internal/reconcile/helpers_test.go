package reconcile

import "github.com/nerrad567/gray-logic-displays/internal/platform"

type platformPath struct {
	friendly string
	conn     string
}

func (p *platformPath) toPath() *platform.TopologyPath {
	if p == nil {
		return nil
	}
	return &platform.TopologyPath{FriendlyName: p.friendly, Connection: p.conn}
}
