package studio

// Gallery 会话内的图库，按生成时间倒序保存。
// 不做并发保护，由 Session 的锁负责。
type Gallery struct {
	images []Image
}

// Prepend 将新图片插入到最前面，保持传入顺序
func (g *Gallery) Prepend(images ...Image) {
	merged := make([]Image, 0, len(images)+len(g.images))
	merged = append(merged, images...)
	g.images = append(merged, g.images...)
}

// Get 按 ID 查找图片
func (g *Gallery) Get(id string) (Image, bool) {
	if i := g.index(id); i >= 0 {
		return g.images[i], true
	}
	return Image{}, false
}

// ToggleFavorite 切换收藏状态并返回更新后的记录
func (g *Gallery) ToggleFavorite(id string) (Image, error) {
	i := g.index(id)
	if i < 0 {
		return Image{}, ErrImageNotFound
	}
	g.images[i].Favorite = !g.images[i].Favorite
	return g.images[i], nil
}

// Delete 删除指定 ID 的图片
func (g *Gallery) Delete(id string) error {
	i := g.index(id)
	if i < 0 {
		return ErrImageNotFound
	}
	g.images = append(g.images[:i:i], g.images[i+1:]...)
	return nil
}

// List 返回过滤后的图片副本
func (g *Gallery) List(filter Filter) []Image {
	out := make([]Image, 0, len(g.images))
	for _, img := range g.images {
		if filter == FilterFavorites && !img.Favorite {
			continue
		}
		out = append(out, img)
	}
	return out
}

// Len 图库中的图片数量
func (g *Gallery) Len() int {
	return len(g.images)
}

func (g *Gallery) index(id string) int {
	for i, img := range g.images {
		if img.ID == id {
			return i
		}
	}
	return -1
}
