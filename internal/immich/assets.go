package immich

import (
	"context"
	"errors"
	"fmt"
)

// GetAssetThumbnail downloads the thumbnail of an asset.
func (im *Immich) GetAssetThumbnail(ctx context.Context, assetID string) ([]byte, error) {
	if assetID == "" {
		return nil, errors.New("asset id is empty")
	}
	data, err := im.http.Get(ctx, im.resolveURL("api", "asset", assetID, "thumbnail"), im.header("image/*"))
	if err != nil {
		return nil, fmt.Errorf("download thumbnail for asset %s: %w", assetID, err)
	}
	return data, nil
}

// GetFaceThumbnail downloads the pre-cropped face thumbnail referenced by face.ThumbnailPath.
func (im *Immich) GetFaceThumbnail(ctx context.Context, face Face) ([]byte, error) {
	if face.ThumbnailPath == "" {
		return nil, fmt.Errorf("face %s has no thumbnail path", face.ID)
	}
	u, err := im.resolvePath(face.ThumbnailPath)
	if err != nil {
		return nil, err
	}
	data, err := im.http.Get(ctx, u, im.header("image/*"))
	if err != nil {
		return nil, fmt.Errorf("download face thumbnail %s: %w", face.ID, err)
	}
	return data, nil
}
