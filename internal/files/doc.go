// Package files locates dashboard table files on disk.
//
// A directory holds at most one current file per table kind. Files are
// matched by name: the base name must start with the kind slug, so
// "rumah-tangga_2024.xlsx" is picked up as the household table. When a
// kind has several candidates the most recently modified one wins.
//
// Example usage:
//
//	found, err := files.NewDiscovery(config.AllowedUploadExtensions).FindTables("data")
//	if err != nil {
//	    return err
//	}
//	for kind, f := range found {
//	    fmt.Println(kind, f.Path)
//	}
package files
