package portals

import (
	"fmt"

	"github.com/google/uuid"
)

type AssetId string

type TextureFormat uint32

const (
	TextureFormatRGBA8Unorm TextureFormat = 0x00000012
	TextureFormatBGRA8Unorm TextureFormat = 0x00000017
)

// MainTextureSlot is the material slot sampled by a portal screen.
const MainTextureSlot = "_MainTex"

type AssetServer struct {
	meshes    map[AssetId]MeshAsset
	materials map[AssetId]MaterialAsset
	textures  map[AssetId]TextureAsset

	renderTexturesAllocated int
	renderTexturesReleased  int
}

type AssetServerModule struct{}

type MeshAsset struct {
	Name string
	// BoundsRadius is the radius of a sphere around the mesh origin
	// enclosing all of its geometry.
	BoundsRadius float32
}

type MaterialAsset struct {
	Name     string
	Textures map[string]AssetId
}

type TextureAsset struct {
	Width     uint32
	Height    uint32
	Format    TextureFormat
	DepthBits int
	// Render marks textures allocated as camera outputs.
	Render   bool
	Released bool
}

func NewAssetServer() *AssetServer {
	return &AssetServer{
		meshes:    make(map[AssetId]MeshAsset),
		materials: make(map[AssetId]MaterialAsset),
		textures:  make(map[AssetId]TextureAsset),
	}
}

func (AssetServerModule) Install(app *App, cmd *Commands) {
	app.addResources(NewAssetServer())
}

func (server *AssetServer) CreateMesh(name string, boundsRadius float32) AssetId {
	id := makeAssetId()
	server.meshes[id] = MeshAsset{Name: name, BoundsRadius: boundsRadius}
	return id
}

func (server *AssetServer) Mesh(id AssetId) (MeshAsset, bool) {
	mesh, ok := server.meshes[id]
	return mesh, ok
}

func (server *AssetServer) CreateMaterial(name string) AssetId {
	id := makeAssetId()
	server.materials[id] = MaterialAsset{Name: name, Textures: make(map[string]AssetId)}
	return id
}

func (server *AssetServer) Material(id AssetId) (MaterialAsset, bool) {
	mat, ok := server.materials[id]
	return mat, ok
}

// SetMaterialTexture binds tex to the named slot. An empty tex clears it.
func (server *AssetServer) SetMaterialTexture(material AssetId, slot string, tex AssetId) error {
	mat, ok := server.materials[material]
	if !ok {
		return fmt.Errorf("material %s: %w", material, ErrUnknownAsset)
	}
	if tex == "" {
		delete(mat.Textures, slot)
		return nil
	}
	if _, ok := server.textures[tex]; !ok {
		return fmt.Errorf("texture %s: %w", tex, ErrUnknownAsset)
	}
	mat.Textures[slot] = tex
	return nil
}

func (server *AssetServer) MaterialTexture(material AssetId, slot string) (AssetId, bool) {
	mat, ok := server.materials[material]
	if !ok {
		return "", false
	}
	tex, ok := mat.Textures[slot]
	return tex, ok
}

func (server *AssetServer) CreateRenderTexture(width, height uint32, depthBits int) AssetId {
	id := makeAssetId()
	server.textures[id] = TextureAsset{
		Width:     width,
		Height:    height,
		Format:    TextureFormatBGRA8Unorm,
		DepthBits: depthBits,
		Render:    true,
	}
	server.renderTexturesAllocated++
	return id
}

// ReleaseTexture marks the texture released and unbinds it from every
// material slot that still samples it.
func (server *AssetServer) ReleaseTexture(id AssetId) error {
	tex, ok := server.textures[id]
	if !ok {
		return fmt.Errorf("texture %s: %w", id, ErrUnknownAsset)
	}
	if tex.Released {
		return nil
	}
	tex.Released = true
	server.textures[id] = tex
	if tex.Render {
		server.renderTexturesReleased++
	}
	for _, mat := range server.materials {
		for slot, bound := range mat.Textures {
			if bound == id {
				delete(mat.Textures, slot)
			}
		}
	}
	return nil
}

func (server *AssetServer) Texture(id AssetId) (TextureAsset, bool) {
	tex, ok := server.textures[id]
	return tex, ok
}

// LiveRenderTextures counts render textures allocated and not yet released.
func (server *AssetServer) LiveRenderTextures() int {
	return server.renderTexturesAllocated - server.renderTexturesReleased
}

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}
