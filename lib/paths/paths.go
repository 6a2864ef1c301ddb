// Package paths provides centralized path construction for the anchor image
// and container directories.
//
// Directory Structure:
//
//	{imageDir}/
//	  {name}.tar               source tarball
//	  {name}/rootfs/           extracted lower layer, shared across containers
//	{containerDir}/
//	  {id}/
//	    rootfs/                merged overlay mountpoint (container root)
//	    cow_upperdir/          overlay upper (writes land here)
//	    cow_workdir/           overlay work dir (kernel scratch)
package paths

import "path/filepath"

// Paths provides typed path construction for image and container storage.
type Paths struct {
	imageDir     string
	containerDir string
}

// New creates a new Paths instance for the given image and container base
// directories.
func New(imageDir, containerDir string) *Paths {
	return &Paths{imageDir: imageDir, containerDir: containerDir}
}

// Image path methods

// ImageTarball returns the path to an image's source tarball.
func (p *Paths) ImageTarball(name string) string {
	return filepath.Join(p.imageDir, name+".tar")
}

// ImageRootfs returns the path to an image's extracted lower layer.
func (p *Paths) ImageRootfs(name string) string {
	return filepath.Join(p.imageDir, name, "rootfs")
}

// Container path methods

// ContainerDir returns the workspace directory for a container.
func (p *Paths) ContainerDir(id string) string {
	return filepath.Join(p.containerDir, id)
}

// ContainerRootfs returns the merged overlay mountpoint for a container.
func (p *Paths) ContainerRootfs(id string) string {
	return filepath.Join(p.containerDir, id, "rootfs")
}

// ContainerUpperDir returns the overlay upper directory for a container.
func (p *Paths) ContainerUpperDir(id string) string {
	return filepath.Join(p.containerDir, id, "cow_upperdir")
}

// ContainerWorkDir returns the overlay work directory for a container.
func (p *Paths) ContainerWorkDir(id string) string {
	return filepath.Join(p.containerDir, id, "cow_workdir")
}

// ContainersDir returns the base directory holding all container workspaces.
func (p *Paths) ContainersDir() string {
	return p.containerDir
}
